// Package mutlog is the durable queue of local edits the remote service has
// not yet confirmed.
package mutlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notesync/internal/domain"

	"go.uber.org/zap"
)

type Log struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Log {
	return &Log{db: db, logger: logger}
}

type payload struct {
	Patch    domain.Patch    `json:"patch"`
	Versions domain.Versions `json:"versions"`
}

// Append persists m with the next sequence number for its device. The
// sequence row and the mutation row are written in one transaction, so a
// number is never handed out twice, even after compaction.
func (l *Log) Append(ctx context.Context, m domain.Mutation) (domain.Mutation, error) {
	body, err := json.Marshal(payload{Patch: m.Patch, Versions: m.Versions})
	if err != nil {
		return domain.Mutation{}, domain.NewStorageError("encode mutation", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Mutation{}, domain.NewStorageError("append mutation", err)
	}
	defer tx.Rollback()

	var next uint64
	err = tx.QueryRowContext(ctx, `SELECT next_seq FROM device_sequences WHERE device_id = ?`, m.DeviceID).Scan(&next)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		next = 1
	case err != nil:
		return domain.Mutation{}, domain.NewStorageError("read sequence", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO device_sequences (device_id, next_seq) VALUES (?, ?)
		ON CONFLICT(device_id) DO UPDATE SET next_seq = excluded.next_seq`,
		m.DeviceID, next+1,
	); err != nil {
		return domain.Mutation{}, domain.NewStorageError("advance sequence", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mutations (device_id, seq, note_id, owner_id, payload, applied, acknowledged, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		m.DeviceID, next, m.NoteID, m.OwnerID, string(body), m.CreatedAt,
	); err != nil {
		return domain.Mutation{}, domain.NewStorageError("insert mutation", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Mutation{}, domain.NewStorageError("append mutation", err)
	}

	m.Seq = next
	m.Applied = false
	m.Acknowledged = false
	l.logger.Debug("mutation appended",
		zap.String("device_id", m.DeviceID),
		zap.Uint64("seq", m.Seq),
		zap.String("note_id", m.NoteID),
	)
	return m, nil
}

// PendingSince returns unacknowledged mutations after seq, oldest first.
func (l *Log) PendingSince(ctx context.Context, deviceID string, seq uint64, limit int) ([]domain.Mutation, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.query(ctx, "pending mutations", `
		SELECT device_id, seq, note_id, owner_id, payload, applied, acknowledged, created_at
		FROM mutations
		WHERE device_id = ? AND seq > ? AND acknowledged = 0
		ORDER BY seq ASC
		LIMIT ?`,
		deviceID, seq, limit,
	)
}

// Unapplied returns mutations that were logged but never written to the
// note store, oldest first.
func (l *Log) Unapplied(ctx context.Context, deviceID string) ([]domain.Mutation, error) {
	return l.query(ctx, "unapplied mutations", `
		SELECT device_id, seq, note_id, owner_id, payload, applied, acknowledged, created_at
		FROM mutations
		WHERE device_id = ? AND applied = 0
		ORDER BY seq ASC`,
		deviceID,
	)
}

// PendingFields returns the fields of noteID with unacknowledged local edits.
func (l *Log) PendingFields(ctx context.Context, deviceID, noteID string) (map[domain.Field]bool, error) {
	ms, err := l.query(ctx, "pending fields", `
		SELECT device_id, seq, note_id, owner_id, payload, applied, acknowledged, created_at
		FROM mutations
		WHERE device_id = ? AND note_id = ? AND acknowledged = 0
		ORDER BY seq ASC`,
		deviceID, noteID,
	)
	if err != nil {
		return nil, err
	}

	fields := make(map[domain.Field]bool)
	for _, m := range ms {
		for _, f := range m.Patch.Fields() {
			fields[f] = true
		}
	}
	return fields, nil
}

func (l *Log) MarkApplied(ctx context.Context, deviceID string, seq uint64) error {
	return l.mark(ctx, "mark applied", `UPDATE mutations SET applied = 1 WHERE device_id = ? AND seq = ?`, deviceID, seq)
}

// MarkAcknowledged records that the remote confirmed receipt. Acknowledged
// mutations stay in the log until the end of the sync cycle.
func (l *Log) MarkAcknowledged(ctx context.Context, deviceID string, seqs ...uint64) error {
	if len(seqs) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("mark acknowledged", err)
	}
	defer tx.Rollback()

	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE mutations SET acknowledged = 1 WHERE device_id = ? AND seq = ?`,
			deviceID, seq,
		); err != nil {
			return domain.NewStorageError("mark acknowledged", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("mark acknowledged", err)
	}
	return nil
}

// Compact removes acknowledged mutations and returns them.
func (l *Log) Compact(ctx context.Context, deviceID string) ([]domain.Mutation, error) {
	acked, err := l.query(ctx, "compact", `
		SELECT device_id, seq, note_id, owner_id, payload, applied, acknowledged, created_at
		FROM mutations
		WHERE device_id = ? AND acknowledged = 1
		ORDER BY seq ASC`,
		deviceID,
	)
	if err != nil {
		return nil, err
	}
	if len(acked) == 0 {
		return nil, nil
	}

	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM mutations WHERE device_id = ? AND acknowledged = 1 AND seq <= ?`,
		deviceID, acked[len(acked)-1].Seq,
	); err != nil {
		return nil, domain.NewStorageError("compact", err)
	}

	l.logger.Debug("mutation log compacted", zap.String("device_id", deviceID), zap.Int("removed", len(acked)))
	return acked, nil
}

// Len counts the mutations still held for deviceID.
func (l *Log) Len(ctx context.Context, deviceID string) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations WHERE device_id = ?`, deviceID).Scan(&n); err != nil {
		return 0, domain.NewStorageError("count mutations", err)
	}
	return n, nil
}

// Cursor returns the stored pull cursor for ownerID, or "" if none.
func (l *Log) Cursor(ctx context.Context, ownerID string) (domain.SyncCursor, error) {
	var c string
	err := l.db.QueryRowContext(ctx, `SELECT cursor FROM sync_cursors WHERE owner_id = ?`, ownerID).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.NewStorageError("read cursor", err)
	}
	return domain.SyncCursor(c), nil
}

func (l *Log) SetCursor(ctx context.Context, ownerID string, c domain.SyncCursor, now int64) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (owner_id, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		ownerID, string(c), now,
	); err != nil {
		return domain.NewStorageError("write cursor", err)
	}
	return nil
}

func (l *Log) mark(ctx context.Context, op, query string, args ...any) error {
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return domain.NewStorageError(op, err)
	}
	return nil
}

func (l *Log) query(ctx context.Context, op, query string, args ...any) ([]domain.Mutation, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer rows.Close()

	var out []domain.Mutation
	for rows.Next() {
		var (
			m    domain.Mutation
			body string
		)
		if err := rows.Scan(&m.DeviceID, &m.Seq, &m.NoteID, &m.OwnerID, &body, &m.Applied, &m.Acknowledged, &m.CreatedAt); err != nil {
			return nil, domain.NewStorageError(op, err)
		}
		var p payload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, domain.NewStorageError(op, fmt.Errorf("decode mutation %d: %w", m.Seq, err))
		}
		m.Patch = p.Patch
		m.Versions = p.Versions
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return out, nil
}

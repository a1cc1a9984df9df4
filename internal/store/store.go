// Package store is the durable on-device note store.
//
// Writes go to SQLite first and are then published as a new immutable
// snapshot, so readers never take a lock and never observe a partially
// applied write.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"notesync/internal/domain"

	"go.uber.org/zap"
)

type snapshot struct {
	notes map[string]domain.Note
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// mu serializes durable writes with snapshot publication.
	mu    sync.Mutex
	snap  atomic.Pointer[snapshot]
	locks *keyedMutex

	subsMu sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// New loads every stored note into the initial snapshot.
func New(ctx context.Context, db *sql.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{
		db:     db,
		logger: logger,
		locks:  newKeyedMutex(),
		subs:   make(map[uint64]*Subscription),
	}

	rows, err := db.QueryContext(ctx, `SELECT doc FROM notes`)
	if err != nil {
		return nil, domain.NewStorageError("load notes", err)
	}
	defer rows.Close()

	notes := make(map[string]domain.Note)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, domain.NewStorageError("scan note", err)
		}
		var n domain.Note
		if err := json.Unmarshal([]byte(doc), &n); err != nil {
			logger.Warn("skipping unreadable note", zap.Error(err))
			continue
		}
		notes[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("load notes", err)
	}

	s.snap.Store(&snapshot{notes: notes})
	logger.Debug("note store loaded", zap.Int("notes", len(notes)))
	return s, nil
}

// Lock takes the exclusive write section for one note. Read-merge-write
// sequences run entirely inside it.
func (s *Store) Lock(noteID string) (unlock func()) {
	return s.locks.Lock(noteID)
}

// Get returns a live note. Tombstones read as not found.
func (s *Store) Get(ctx context.Context, noteID string) (domain.Note, error) {
	n, err := s.Load(ctx, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	if n.Deleted {
		return domain.Note{}, fmt.Errorf("note %s: %w", noteID, domain.ErrNotFound)
	}
	return n, nil
}

// Load returns the stored record, tombstones included.
func (s *Store) Load(_ context.Context, noteID string) (domain.Note, error) {
	n, ok := s.snap.Load().notes[noteID]
	if !ok {
		return domain.Note{}, fmt.Errorf("note %s: %w", noteID, domain.ErrNotFound)
	}
	return n.Clone(), nil
}

// List returns the owner's live notes, pinned first, then most recently updated.
func (s *Store) List(_ context.Context, ownerID string) ([]domain.Note, error) {
	return s.filter(ownerID, func(domain.Note) bool { return true }), nil
}

// Search matches query against title and content without regard to case.
func (s *Store) Search(_ context.Context, ownerID, query string) ([]domain.Note, error) {
	return s.filter(ownerID, func(n domain.Note) bool { return n.Matches(query) }), nil
}

// Tombstones returns the owner's deleted notes that are still stored.
func (s *Store) Tombstones(_ context.Context, ownerID string) []domain.Note {
	var out []domain.Note
	for _, n := range s.snap.Load().notes {
		if n.OwnerID == ownerID && n.Deleted {
			out = append(out, n.Clone())
		}
	}
	return out
}

func (s *Store) filter(ownerID string, keep func(domain.Note) bool) []domain.Note {
	out := []domain.Note{}
	for _, n := range s.snap.Load().notes {
		if n.OwnerID != ownerID || n.Deleted || !keep(n) {
			continue
		}
		out = append(out, n.Clone())
	}
	sortNotes(out)
	return out
}

func sortNotes(notes []domain.Note) {
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ID < b.ID
	})
}

// Put overwrites the note atomically and notifies subscribers.
func (s *Store) Put(ctx context.Context, n domain.Note, origin domain.Origin) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return domain.NewStorageError("encode note", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, pinned, deleted, updated_at, doc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			pinned = excluded.pinned,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at,
			doc = excluded.doc`,
		n.ID, n.OwnerID, n.Pinned, n.Deleted, n.UpdatedAt, string(doc),
	)
	if err != nil {
		return domain.NewStorageError("put note", err)
	}

	s.publish(func(notes map[string]domain.Note) {
		notes[n.ID] = n.Clone()
	})

	kind := domain.EventPut
	if n.Deleted {
		kind = domain.EventDelete
	}
	s.Notify(domain.ChangeEvent{Kind: kind, Origin: origin, Note: n.Clone()})
	return nil
}

// Delete tombstones a note with the given deletion version. Callers hold
// Lock(noteID).
func (s *Store) Delete(ctx context.Context, noteID string, v domain.FieldVersion, origin domain.Origin) (domain.Note, error) {
	n, err := s.Load(ctx, noteID)
	if err != nil {
		return domain.Note{}, err
	}
	if n.Versions == nil {
		n.Versions = make(domain.Versions)
	}
	n.Deleted = true
	n.Versions[domain.FieldDeleted] = v.Clone()
	n.UpdatedAt = max(n.UpdatedAt, v.Timestamp)

	if err := s.Put(ctx, n, origin); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

// Purge physically removes a tombstone. Live notes are left alone.
func (s *Store) Purge(ctx context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND deleted = 1`, noteID)
	if err != nil {
		return domain.NewStorageError("purge note", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil
	}

	s.publish(func(notes map[string]domain.Note) {
		delete(notes, noteID)
	})
	s.logger.Debug("tombstone purged", zap.String("note_id", noteID))
	return nil
}

// publish installs a modified copy of the current snapshot. Callers hold mu.
func (s *Store) publish(modify func(map[string]domain.Note)) {
	cur := s.snap.Load().notes
	next := make(map[string]domain.Note, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	modify(next)
	s.snap.Store(&snapshot{notes: next})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"notesync/internal/domain"
	"notesync/internal/merge"
	"notesync/internal/repository"

	"go.uber.org/zap"
)

const maxMergeAttempts = 5

// ChangeNotifier tells a user's other connected devices that a note changed.
type ChangeNotifier interface {
	NotifyNoteChanged(userID, noteID, originDeviceID string) error
}

type SyncService struct {
	noteRepo     repository.NoteRepository
	metadataRepo repository.SyncMetadataRepository
	notifier     ChangeNotifier
	pullLimit    int
	maxPullLimit int
	logger       *zap.Logger
}

func NewSyncService(
	noteRepo repository.NoteRepository,
	metadataRepo repository.SyncMetadataRepository,
	notifier ChangeNotifier,
	pullLimit, maxPullLimit int,
	logger *zap.Logger,
) *SyncService {
	if pullLimit <= 0 {
		pullLimit = 100
	}
	if maxPullLimit < pullLimit {
		maxPullLimit = pullLimit
	}
	return &SyncService{
		noteRepo:     noteRepo,
		metadataRepo: metadataRepo,
		notifier:     notifier,
		pullLimit:    pullLimit,
		maxPullLimit: maxPullLimit,
		logger:       logger,
	}
}

// Push merges a batch of mutations from one device. Seqs at or below the
// device's watermark were merged by an earlier push and are acknowledged
// again without being re-applied.
func (s *SyncService) Push(ctx context.Context, userID string, req *domain.PushRequest) (*domain.PushResponse, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return nil, err
	}

	mutations := append([]domain.Mutation(nil), req.Mutations...)
	sort.Slice(mutations, func(i, j int) bool { return mutations[i].Seq < mutations[j].Seq })

	meta, rev, err := s.metadataRepo.Get(ctx, userID, req.DeviceID)
	if err != nil {
		return nil, err
	}

	resp := &domain.PushResponse{Acked: []uint64{}, Conflicts: []domain.Note{}}
	conflicts := map[string]domain.Note{}
	var changed []string
	var pushErr error

	for _, m := range mutations {
		if m.DeviceID != req.DeviceID {
			pushErr = domain.NewValidationError("mutations", fmt.Sprintf("seq %d was written by device %q", m.Seq, m.DeviceID))
			break
		}
		if m.Seq <= meta.AckedSeq {
			resp.Acked = append(resp.Acked, m.Seq)
			continue
		}

		note, conflict, applied, err := s.apply(ctx, userID, m)
		if err != nil {
			pushErr = err
			break
		}
		if applied {
			changed = append(changed, m.NoteID)
		}
		if conflict {
			conflicts[note.ID] = note
		}

		meta.AckedSeq = m.Seq
		resp.Acked = append(resp.Acked, m.Seq)
	}

	if len(resp.Acked) > 0 {
		if err := s.saveWatermark(ctx, meta, rev); err != nil {
			return nil, fmt.Errorf("failed to save push watermark: %w", err)
		}
	}

	for _, noteID := range changed {
		if err := s.notifier.NotifyNoteChanged(userID, noteID, req.DeviceID); err != nil {
			s.logger.Warn("failed to notify devices", zap.String("note_id", noteID), zap.Error(err))
		}
	}

	if pushErr != nil {
		return nil, pushErr
	}

	for _, n := range conflicts {
		resp.Conflicts = append(resp.Conflicts, n)
	}
	sort.Slice(resp.Conflicts, func(i, j int) bool { return resp.Conflicts[i].ID < resp.Conflicts[j].ID })

	return resp, nil
}

// saveWatermark stores meta.AckedSeq. A concurrent pull may have moved the
// document revision in the meantime; the watermark never moves backwards.
func (s *SyncService) saveWatermark(ctx context.Context, meta domain.SyncMetadata, rev string) error {
	acked := meta.AckedSeq
	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		meta.AckedSeq = max(meta.AckedSeq, acked)
		meta.LastPushAt = time.Now().UTC()
		meta.UpdatedAt = meta.LastPushAt

		_, err := s.metadataRepo.Put(ctx, meta, rev)
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}

		meta, rev, err = s.metadataRepo.Get(ctx, meta.UserID, meta.DeviceID)
		if err != nil {
			return err
		}
	}
	return domain.ErrConflict
}

// apply merges one mutation into the stored note. It reports the merged note,
// whether any patched field was concurrent with the stored version and
// whether the stored note changed. Mutations for notes owned by someone else
// are dropped.
func (s *SyncService) apply(ctx context.Context, userID string, m domain.Mutation) (domain.Note, bool, bool, error) {
	if m.OwnerID != userID {
		s.logger.Warn("dropping mutation for foreign note",
			zap.String("note_id", m.NoteID),
			zap.String("device_id", m.DeviceID),
			zap.Uint64("seq", m.Seq),
		)
		return domain.Note{}, false, false, nil
	}

	incoming := merge.FromMutation(m)

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		current, rev, err := s.noteRepo.Get(ctx, m.NoteID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			current, rev = domain.Note{}, ""
		case err != nil:
			return domain.Note{}, false, false, err
		}

		if rev != "" && current.OwnerID != userID {
			s.logger.Warn("dropping mutation for note id owned by another user",
				zap.String("note_id", m.NoteID),
				zap.Uint64("seq", m.Seq),
			)
			return domain.Note{}, false, false, nil
		}

		merged := incoming
		conflict := false
		if rev != "" {
			merged = merge.Merge(current, incoming)
			conflict = concurrent(current, m)
		}

		if rev != "" && merged.Equal(current) {
			return merged, conflict, false, nil
		}

		_, err = s.noteRepo.Put(ctx, merged, rev)
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Debug("note revision moved, merging again",
				zap.String("note_id", m.NoteID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return domain.Note{}, false, false, err
		}
		return merged, conflict, true, nil
	}

	return domain.Note{}, false, false, fmt.Errorf("note %s kept changing during merge: %w", m.NoteID, domain.ErrConflict)
}

// concurrent reports whether any field written by m was concurrently written
// by another device.
func concurrent(current domain.Note, m domain.Mutation) bool {
	for _, f := range m.Patch.Fields() {
		stored, ok := current.Versions[f]
		if !ok {
			continue
		}
		written, ok := m.Versions[f]
		if !ok {
			continue
		}
		if stored.Clock.Compare(written.Clock) == domain.Concurrent {
			return true
		}
	}
	return false
}

// Pull returns the user's changed notes after cursor.
func (s *SyncService) Pull(ctx context.Context, userID, deviceID string, cursor domain.SyncCursor, limit int) (*domain.PullResponse, error) {
	if limit <= 0 {
		limit = s.pullLimit
	}
	if limit > s.maxPullLimit {
		limit = s.maxPullLimit
	}

	set, err := s.noteRepo.Changes(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}

	s.recordPull(ctx, userID, deviceID)

	changes := set.Notes
	if changes == nil {
		changes = []domain.Note{}
	}
	return &domain.PullResponse{
		Changes: changes,
		Cursor:  set.Cursor,
		HasMore: set.HasMore,
	}, nil
}

func (s *SyncService) recordPull(ctx context.Context, userID, deviceID string) {
	if deviceID == "" {
		return
	}
	meta, rev, err := s.metadataRepo.Get(ctx, userID, deviceID)
	if err == nil {
		meta.LastPullAt = time.Now().UTC()
		meta.UpdatedAt = meta.LastPullAt
		_, err = s.metadataRepo.Put(ctx, meta, rev)
	}
	if err != nil {
		s.logger.Warn("failed to record pull",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

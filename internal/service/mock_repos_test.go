package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"notesync/internal/domain"
	"notesync/internal/repository"
)

type mockNoteRepo struct {
	notes map[string]domain.Note
	revs  map[string]int
	feed  []string
	// conflictOnce makes the next Put of the note fail as if another writer
	// had saved first.
	conflictOnce map[string]bool
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{
		notes:        make(map[string]domain.Note),
		revs:         make(map[string]int),
		conflictOnce: make(map[string]bool),
	}
}

func (m *mockNoteRepo) rev(id string) string {
	if _, ok := m.notes[id]; !ok {
		return ""
	}
	return strconv.Itoa(m.revs[id])
}

func (m *mockNoteRepo) Get(_ context.Context, id string) (domain.Note, string, error) {
	n, ok := m.notes[id]
	if !ok {
		return domain.Note{}, "", fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return n.Clone(), m.rev(id), nil
}

func (m *mockNoteRepo) Put(_ context.Context, note domain.Note, rev string) (string, error) {
	if m.conflictOnce[note.ID] {
		delete(m.conflictOnce, note.ID)
		m.revs[note.ID]++
		return "", domain.ErrConflict
	}
	if rev != m.rev(note.ID) {
		return "", domain.ErrConflict
	}
	m.notes[note.ID] = note.Clone()
	m.revs[note.ID]++
	m.feed = append(m.feed, note.ID)
	return m.rev(note.ID), nil
}

func (m *mockNoteRepo) List(_ context.Context, userID string) ([]domain.Note, error) {
	var notes []domain.Note
	for _, n := range m.notes {
		if n.OwnerID == userID && !n.Deleted {
			notes = append(notes, n.Clone())
		}
	}
	return notes, nil
}

func (m *mockNoteRepo) Changes(_ context.Context, userID string, since domain.SyncCursor, limit int) (repository.ChangeSet, error) {
	start := 0
	if since != "" {
		var err error
		if start, err = strconv.Atoi(string(since)); err != nil {
			return repository.ChangeSet{}, err
		}
	}
	end := min(start+limit, len(m.feed))

	set := repository.ChangeSet{Cursor: domain.SyncCursor(strconv.Itoa(end)), HasMore: end < len(m.feed)}
	for _, id := range m.feed[start:end] {
		if n := m.notes[id]; n.OwnerID == userID {
			set.Notes = append(set.Notes, n.Clone())
		}
	}
	return set, nil
}

type mockMetadataRepo struct {
	metas map[string]domain.SyncMetadata
	revs  map[string]int
}

func newMockMetadataRepo() *mockMetadataRepo {
	return &mockMetadataRepo{
		metas: make(map[string]domain.SyncMetadata),
		revs:  make(map[string]int),
	}
}

func (m *mockMetadataRepo) Get(_ context.Context, userID, deviceID string) (domain.SyncMetadata, string, error) {
	key := userID + ":" + deviceID
	meta, ok := m.metas[key]
	if !ok {
		return domain.SyncMetadata{UserID: userID, DeviceID: deviceID}, "", nil
	}
	return meta, strconv.Itoa(m.revs[key]), nil
}

func (m *mockMetadataRepo) Put(_ context.Context, meta domain.SyncMetadata, rev string) (string, error) {
	key := meta.UserID + ":" + meta.DeviceID
	want := ""
	if _, ok := m.metas[key]; ok {
		want = strconv.Itoa(m.revs[key])
	}
	if rev != want {
		return "", domain.ErrConflict
	}
	m.metas[key] = meta
	m.revs[key]++
	return strconv.Itoa(m.revs[key]), nil
}

type notification struct {
	userID, noteID, origin string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (m *mockNotifier) NotifyNoteChanged(userID, noteID, originDeviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, notification{userID, noteID, originDeviceID})
	return nil
}

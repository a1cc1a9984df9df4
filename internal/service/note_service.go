package service

import (
	"context"
	"fmt"
	"sort"

	"notesync/internal/domain"
	"notesync/internal/repository"
)

// NoteService is the read side of the hosted notes. Writes only arrive
// through SyncService.Push.
type NoteService struct {
	repo repository.NoteRepository
}

func NewNoteService(repo repository.NoteRepository) *NoteService {
	return &NoteService{
		repo: repo,
	}
}

// List returns the user's live notes matching query, pinned first and then
// most recently updated.
func (s *NoteService) List(ctx context.Context, userID, query string) ([]domain.NoteResponse, error) {
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

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

	out := make([]domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		if n.Deleted || !n.Matches(query) {
			continue
		}
		out = append(out, domain.NewNoteResponse(n))
	}
	return out, nil
}

func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*domain.NoteResponse, error) {
	note, _, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != userID {
		return nil, fmt.Errorf("note belongs to another user: %w", domain.ErrForbidden)
	}
	if note.Deleted {
		return nil, fmt.Errorf("note %s deleted: %w", noteID, domain.ErrNotFound)
	}

	resp := domain.NewNoteResponse(note)
	return &resp, nil
}

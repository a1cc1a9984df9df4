// Package remote talks to the hosted notes service.
package remote

import (
	"context"

	"notesync/internal/domain"
)

// Service is the remote notes service as seen by the sync coordinator.
type Service interface {
	// Push delivers mutations in seq order. Acked lists the seqs the service
	// has durably merged; redelivered seqs are acknowledged again.
	Push(ctx context.Context, sess domain.Session, mutations []domain.Mutation) (domain.PushResponse, error)
	// Pull returns notes changed after cursor. Delivery is at-least-once.
	Pull(ctx context.Context, sess domain.Session, cursor domain.SyncCursor, limit int) (domain.PullResponse, error)
	// Hints streams change notifications until ctx is done. Hints carry no
	// note data; they only tell the coordinator a pull is worthwhile.
	Hints(ctx context.Context, sess domain.Session) (<-chan Hint, error)
}

type Hint struct {
	NoteID   string `json:"note_id"`
	DeviceID string `json:"device_id"`
}

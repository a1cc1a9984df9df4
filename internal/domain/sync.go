package domain

import "time"

// SyncMetadata is the server's per-device push watermark. Mutations with a
// seq at or below AckedSeq were already merged and are acknowledged again
// without being re-applied.
type SyncMetadata struct {
	UserID     string    `json:"user_id"`
	DeviceID   string    `json:"device_id"`
	AckedSeq   uint64    `json:"acked_seq"`
	LastPushAt time.Time `json:"last_push_at"`
	LastPullAt time.Time `json:"last_pull_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PushRequest struct {
	DeviceID  string     `json:"device_id" validate:"required"`
	Mutations []Mutation `json:"mutations" validate:"required,max=500,dive"`
}

type PushResponse struct {
	Acked []uint64 `json:"acked"`
	// Conflicts holds the merged server state of notes where an incoming
	// mutation was concurrent with a write from another device.
	Conflicts []Note `json:"conflicts"`
}

type PullResponse struct {
	Changes []Note     `json:"changes"`
	Cursor  SyncCursor `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

type NoteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	Pinned    bool      `json:"pinned"`
	Stats     NoteStats `json:"stats"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

func NewNoteResponse(n Note) NoteResponse {
	return NoteResponse{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		Pinned:    n.Pinned,
		Stats:     n.Stats(),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

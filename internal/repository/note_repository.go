package repository

import (
	"context"
	"fmt"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// NoteRepository stores the server's merged copy of every note. Writes use
// CouchDB revisions for optimistic concurrency: a stale rev yields
// domain.ErrConflict and the caller re-reads and re-merges.
type NoteRepository interface {
	Get(ctx context.Context, id string) (domain.Note, string, error)
	Put(ctx context.Context, note domain.Note, rev string) (string, error)
	List(ctx context.Context, userID string) ([]domain.Note, error)
	// Changes returns the owner's notes changed after since, in feed order,
	// and the cursor to resume from.
	Changes(ctx context.Context, userID string, since domain.SyncCursor, limit int) (ChangeSet, error)
}

type ChangeSet struct {
	Notes   []domain.Note
	Cursor  domain.SyncCursor
	HasMore bool
}

type noteDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.Note
}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *noteRepository) Get(ctx context.Context, id string) (domain.Note, string, error) {
	var doc noteDoc
	if err := r.client.DB(r.dbName).Get(ctx, docID(docTypeNote, id)).ScanDoc(&doc); err != nil {
		return domain.Note{}, "", couchError("find note", err)
	}
	return doc.Note, doc.Rev, nil
}

func (r *noteRepository) Put(ctx context.Context, note domain.Note, rev string) (string, error) {
	newRev, err := r.client.DB(r.dbName).Put(ctx, docID(docTypeNote, note.ID), noteDoc{
		Rev:  rev,
		Type: docTypeNote,
		Note: note,
	})
	if err != nil {
		return "", couchError("put note", err)
	}
	return newRev, nil
}

func (r *noteRepository) List(ctx context.Context, userID string) ([]domain.Note, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":     docTypeNote,
			"owner_id": userID,
			"deleted":  false,
		},
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		notes = append(notes, doc.Note)
	}
	if err := rows.Err(); err != nil {
		return nil, couchError("list notes", err)
	}

	return notes, nil
}

// Changes reads the database changes feed. The feed covers every document
// type and account, so the page may hold fewer notes than limit while
// HasMore is still true.
func (r *noteRepository) Changes(ctx context.Context, userID string, since domain.SyncCursor, limit int) (ChangeSet, error) {
	params := map[string]interface{}{
		"include_docs": true,
		"limit":        limit,
	}
	if since != "" {
		params["since"] = string(since)
	}

	changes := r.client.DB(r.dbName).Changes(ctx, kivik.Params(params))
	defer changes.Close()

	set := ChangeSet{Cursor: since}
	for changes.Next() {
		set.Cursor = domain.SyncCursor(changes.Seq())
		if changes.Deleted() {
			continue
		}

		var doc noteDoc
		if err := changes.ScanDoc(&doc); err != nil {
			continue
		}
		if doc.Type != docTypeNote || doc.OwnerID != userID {
			continue
		}
		set.Notes = append(set.Notes, doc.Note)
	}
	if err := changes.Err(); err != nil {
		return ChangeSet{}, couchError("read changes", err)
	}

	meta, err := changes.Metadata()
	if err != nil {
		return ChangeSet{}, fmt.Errorf("failed to read changes metadata: %w", err)
	}
	if meta.LastSeq != "" {
		set.Cursor = domain.SyncCursor(meta.LastSeq)
	}
	set.HasMore = meta.Pending > 0

	return set, nil
}

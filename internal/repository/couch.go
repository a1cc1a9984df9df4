package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// Document types stored side by side in the single CouchDB database.
const (
	docTypeUser     = "user"
	docTypeDevice   = "device"
	docTypeNote     = "note"
	docTypeSyncMeta = "sync_metadata"
)

func docID(kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// couchError maps CouchDB status codes onto domain sentinels.
func couchError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch kivik.HTTPStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// EnsureDatabase creates the database and the Mango indexes the repositories
// query by.
func EnsureDatabase(ctx context.Context, client *kivik.Client, dbName string) error {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	db := client.DB(dbName)
	indexes := map[string][]string{
		"by-type-email":    {"type", "email"},
		"by-type-username": {"type", "username"},
		"by-type-user":     {"type", "user_id"},
		"by-type-owner":    {"type", "owner_id", "deleted"},
	}
	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "notesync", name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}

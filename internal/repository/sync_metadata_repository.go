package repository

import (
	"context"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// SyncMetadataRepository keeps one push watermark document per device.
type SyncMetadataRepository interface {
	Get(ctx context.Context, userID, deviceID string) (domain.SyncMetadata, string, error)
	Put(ctx context.Context, meta domain.SyncMetadata, rev string) (string, error)
}

type syncMetadataDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.SyncMetadata
}

type syncMetadataRepository struct {
	client *kivik.Client
	dbName string
}

func NewSyncMetadataRepository(client *kivik.Client, dbName string) SyncMetadataRepository {
	return &syncMetadataRepository{
		client: client,
		dbName: dbName,
	}
}

func syncMetadataID(userID, deviceID string) string {
	return docID(docTypeSyncMeta, userID+":"+deviceID)
}

// Get returns the stored watermark. A device that never pushed gets a zero
// value with an empty rev.
func (r *syncMetadataRepository) Get(ctx context.Context, userID, deviceID string) (domain.SyncMetadata, string, error) {
	var doc syncMetadataDoc
	err := r.client.DB(r.dbName).Get(ctx, syncMetadataID(userID, deviceID)).ScanDoc(&doc)
	if err != nil {
		err = couchError("get sync metadata", err)
		if isNotFound(err) {
			return domain.SyncMetadata{UserID: userID, DeviceID: deviceID}, "", nil
		}
		return domain.SyncMetadata{}, "", err
	}
	return doc.SyncMetadata, doc.Rev, nil
}

func (r *syncMetadataRepository) Put(ctx context.Context, meta domain.SyncMetadata, rev string) (string, error) {
	newRev, err := r.client.DB(r.dbName).Put(ctx, syncMetadataID(meta.UserID, meta.DeviceID), syncMetadataDoc{
		Rev:          rev,
		Type:         docTypeSyncMeta,
		SyncMetadata: meta,
	})
	if err != nil {
		return "", couchError("save sync metadata", err)
	}
	return newRev, nil
}

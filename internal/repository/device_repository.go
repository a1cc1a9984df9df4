package repository

import (
	"context"
	"time"

	"notesync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	List(ctx context.Context, userID string) ([]*domain.Device, error)
	FindByID(ctx context.Context, deviceID string) (*domain.Device, error)
	Revoke(ctx context.Context, deviceID string) error
	UpdateLastActive(ctx context.Context, deviceID string) error
}

type deviceDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.Device
}

type deviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &deviceRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	db := r.client.DB(r.dbName)

	_, err := db.Put(ctx, docID(docTypeDevice, device.ID), deviceDoc{Type: docTypeDevice, Device: *device})
	return couchError("create device", err)
}

func (r *deviceRepository) List(ctx context.Context, userID string) ([]*domain.Device, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":    docTypeDevice,
			"user_id": userID,
		},
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		var doc deviceDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue // Skip malformed docs
		}
		devices = append(devices, &doc.Device)
	}
	if err := rows.Err(); err != nil {
		return nil, couchError("list devices", err)
	}

	return devices, nil
}

func (r *deviceRepository) FindByID(ctx context.Context, deviceID string) (*domain.Device, error) {
	doc, err := r.get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return &doc.Device, nil
}

func (r *deviceRepository) get(ctx context.Context, deviceID string) (deviceDoc, error) {
	var doc deviceDoc
	if err := r.client.DB(r.dbName).Get(ctx, docID(docTypeDevice, deviceID)).ScanDoc(&doc); err != nil {
		return deviceDoc{}, couchError("find device", err)
	}
	return doc, nil
}

func (r *deviceRepository) Revoke(ctx context.Context, deviceID string) error {
	return r.modify(ctx, deviceID, "revoke device", func(d *domain.Device) {
		d.IsRevoked = true
	})
}

func (r *deviceRepository) UpdateLastActive(ctx context.Context, deviceID string) error {
	return r.modify(ctx, deviceID, "update last active", func(d *domain.Device) {
		d.LastActive = time.Now().UTC()
	})
}

func (r *deviceRepository) modify(ctx context.Context, deviceID, op string, change func(*domain.Device)) error {
	doc, err := r.get(ctx, deviceID)
	if err != nil {
		return err
	}
	change(&doc.Device)

	_, err = r.client.DB(r.dbName).Put(ctx, docID(docTypeDevice, deviceID), doc)
	return couchError(op, err)
}

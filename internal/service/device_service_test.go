package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"notesync/internal/domain"
)

type mockDeviceRepo struct {
	devices map[string]*domain.Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{
		devices: make(map[string]*domain.Device),
	}
}

func (m *mockDeviceRepo) Create(_ context.Context, device *domain.Device) error {
	if _, exists := m.devices[device.ID]; exists {
		return domain.ErrAlreadyExists
	}
	m.devices[device.ID] = device
	return nil
}

func (m *mockDeviceRepo) List(_ context.Context, userID string) ([]*domain.Device, error) {
	var devices []*domain.Device
	for _, d := range m.devices {
		if d.UserID == userID {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func (m *mockDeviceRepo) FindByID(_ context.Context, deviceID string) (*domain.Device, error) {
	if d, exists := m.devices[deviceID]; exists {
		return d, nil
	}
	return nil, fmt.Errorf("device %s: %w", deviceID, domain.ErrNotFound)
}

func (m *mockDeviceRepo) Revoke(_ context.Context, deviceID string) error {
	if d, exists := m.devices[deviceID]; exists {
		d.IsRevoked = true
		return nil
	}
	return domain.ErrNotFound
}

func (m *mockDeviceRepo) UpdateLastActive(_ context.Context, deviceID string) error {
	if d, exists := m.devices[deviceID]; exists {
		d.LastActive = time.Now()
		return nil
	}
	return domain.ErrNotFound
}

func TestDeviceService_Register(t *testing.T) {
	repo := newMockDeviceRepo()
	service := NewDeviceService(repo)

	req := &domain.RegisterDeviceRequest{
		Name:       "Pixel",
		Type:       "mobile",
		OS:         "android",
		AppVersion: "1.0.0",
	}

	resp, err := service.Register(context.Background(), "user1", req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Name != req.Name {
		t.Errorf("expected name %s, got %s", req.Name, resp.Name)
	}
	if resp.ID == "" {
		t.Error("expected device ID to be generated")
	}
	if repo.devices[resp.ID].UserID != "user1" {
		t.Error("expected device to be stored for user1")
	}
}

func TestDeviceService_List(t *testing.T) {
	repo := newMockDeviceRepo()
	service := NewDeviceService(repo)
	ctx := context.Background()

	repo.Create(ctx, &domain.Device{ID: "d1", UserID: "user1", Name: "D1"})
	repo.Create(ctx, &domain.Device{ID: "d2", UserID: "user1", Name: "D2"})
	repo.Create(ctx, &domain.Device{ID: "d3", UserID: "user2", Name: "D3"})

	list, err := service.List(ctx, "user1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(list) != 2 {
		t.Errorf("expected 2 devices, got %d", len(list))
	}
}

func TestDeviceService_Revoke(t *testing.T) {
	repo := newMockDeviceRepo()
	service := NewDeviceService(repo)
	ctx := context.Background()

	repo.Create(ctx, &domain.Device{ID: "d1", UserID: "user1", Name: "D1"})

	if err := service.Revoke(ctx, "user1", "d1"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if !repo.devices["d1"].IsRevoked {
		t.Error("expected device to be revoked")
	}

	if err := service.Revoke(ctx, "user2", "d1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	if err := service.Revoke(ctx, "user1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeviceService_Authorize(t *testing.T) {
	repo := newMockDeviceRepo()
	service := NewDeviceService(repo)
	ctx := context.Background()

	repo.Create(ctx, &domain.Device{ID: "active", UserID: "user1"})
	repo.Create(ctx, &domain.Device{ID: "revoked", UserID: "user1", IsRevoked: true})

	tests := []struct {
		name     string
		userID   string
		deviceID string
		wantErr  error
	}{
		{name: "active device", userID: "user1", deviceID: "active"},
		{name: "revoked device", userID: "user1", deviceID: "revoked", wantErr: domain.ErrForbidden},
		{name: "other user", userID: "user2", deviceID: "active", wantErr: domain.ErrForbidden},
		{name: "unknown device", userID: "user1", deviceID: "nope", wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Authorize(ctx, tt.userID, tt.deviceID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Authorize() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if repo.devices["active"].LastActive.IsZero() {
		t.Error("expected last active to be recorded")
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"notesync/internal/domain"
	"notesync/internal/repository"

	"github.com/google/uuid"
)

type DeviceService struct {
	repo repository.DeviceRepository
}

func NewDeviceService(repo repository.DeviceRepository) *DeviceService {
	return &DeviceService{
		repo: repo,
	}
}

// Register creates a device record. The returned id is the device's identity
// in vector clocks and push watermarks.
func (s *DeviceService) Register(ctx context.Context, userID string, req *domain.RegisterDeviceRequest) (*domain.DeviceResponse, error) {
	now := time.Now().UTC()

	device := &domain.Device{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       req.Name,
		Type:       req.Type,
		OS:         req.OS,
		AppVersion: req.AppVersion,
		LastActive: now,
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, device); err != nil {
		return nil, err
	}

	return device.Response(), nil
}

func (s *DeviceService) List(ctx context.Context, userID string) ([]*domain.DeviceResponse, error) {
	devices, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		responses = append(responses, d.Response())
	}

	return responses, nil
}

func (s *DeviceService) Revoke(ctx context.Context, userID, deviceID string) error {
	if _, err := s.owned(ctx, userID, deviceID); err != nil {
		return err
	}
	return s.repo.Revoke(ctx, deviceID)
}

// Authorize checks that the device belongs to the user and is still active,
// and records the activity.
func (s *DeviceService) Authorize(ctx context.Context, userID, deviceID string) error {
	device, err := s.owned(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if device.IsRevoked {
		return fmt.Errorf("device %s revoked: %w", deviceID, domain.ErrForbidden)
	}
	return s.repo.UpdateLastActive(ctx, deviceID)
}

func (s *DeviceService) owned(ctx context.Context, userID, deviceID string) (*domain.Device, error) {
	device, err := s.repo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.UserID != userID {
		return nil, fmt.Errorf("device does not belong to user: %w", domain.ErrForbidden)
	}
	return device, nil
}

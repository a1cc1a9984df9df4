package domain

import "time"

// Device is one registered installation of a client. Its ID is the
// component key in vector clocks and the owner of a mutation seq space, so
// it is never reused once revoked.
type Device struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	OS         string    `json:"os"`
	AppVersion string    `json:"app_version"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
	IsRevoked  bool      `json:"is_revoked"`
}

func (d *Device) Response() *DeviceResponse {
	return &DeviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		Type:       d.Type,
		OS:         d.OS,
		AppVersion: d.AppVersion,
		LastActive: d.LastActive,
		IsRevoked:  d.IsRevoked,
	}
}

type RegisterDeviceRequest struct {
	Name       string `json:"name" validate:"required,max=64"`
	Type       string `json:"type" validate:"required,max=32"`
	OS         string `json:"os" validate:"required,max=32"`
	AppVersion string `json:"app_version" validate:"required,max=32"`
}

type DeviceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	OS         string    `json:"os"`
	AppVersion string    `json:"app_version,omitempty"`
	LastActive time.Time `json:"last_active"`
	IsRevoked  bool      `json:"is_revoked"`
}

package remote

import (
	"context"
	"net/http"
	"net/url"

	"notesync/internal/domain"
)

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) error {
	return c.do(ctx, "register", http.MethodPost, "/api/v1/auth/register", "", req, nil)
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	var out domain.LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/api/v1/auth/login", "", req, &out)
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenResponse, error) {
	var out domain.TokenResponse
	err := c.do(ctx, "refresh", http.MethodPost, "/api/v1/auth/refresh", "",
		domain.RefreshTokenRequest{RefreshToken: refreshToken}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "logout", http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
}

func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, "me", http.MethodGet, "/api/v1/users/me", token, nil, &out)
	return out, err
}

func (c *Client) RegisterDevice(ctx context.Context, token string, req domain.RegisterDeviceRequest) (domain.DeviceResponse, error) {
	var out domain.DeviceResponse
	err := c.do(ctx, "register device", http.MethodPost, "/api/v1/devices/register", token, req, &out)
	return out, err
}

func (c *Client) Devices(ctx context.Context, token string) ([]domain.DeviceResponse, error) {
	var out []domain.DeviceResponse
	err := c.do(ctx, "list devices", http.MethodGet, "/api/v1/devices", token, nil, &out)
	return out, err
}

func (c *Client) RevokeDevice(ctx context.Context, token, deviceID string) error {
	return c.do(ctx, "revoke device", http.MethodDelete, "/api/v1/devices/"+url.PathEscape(deviceID), token, nil, nil)
}

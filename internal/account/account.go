// Package account keeps the signed-in session for this device and talks to
// the server's auth and device endpoints.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notesync/internal/domain"

	"go.uber.org/zap"
)

// Authenticator is the part of the remote API the account service needs.
type Authenticator interface {
	Register(ctx context.Context, req domain.RegisterRequest) error
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenResponse, error)
	Logout(ctx context.Context, token string) error
	RegisterDevice(ctx context.Context, token string, req domain.RegisterDeviceRequest) (domain.DeviceResponse, error)
}

// DeviceInfo describes this installation when it registers with the server.
type DeviceInfo struct {
	Name       string
	Type       string
	OS         string
	AppVersion string
}

type Service struct {
	db     *sql.DB
	auth   Authenticator
	device DeviceInfo
	logger *zap.Logger
}

func NewService(db *sql.DB, auth Authenticator, device DeviceInfo, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		auth:   auth,
		device: device,
		logger: logger.Named("account"),
	}
}

// Session returns the stored session. A signed-out device has none.
func (s *Service) Session(ctx context.Context) (domain.Session, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.AccessToken == "" || !sess.Valid() {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

func (s *Service) CurrentUserID(ctx context.Context) (string, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) error {
	if err := domain.ValidateStruct(req); err != nil {
		return err
	}
	return s.auth.Register(ctx, req)
}

// Login signs in and makes sure this device is registered for the account.
// A device that signs back into the same account keeps its device id, so
// mutations queued before a logout are still pushed under their original
// sequence numbers.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.Session, error) {
	if err := domain.ValidateStruct(req); err != nil {
		return domain.Session{}, err
	}

	resp, err := s.auth.Login(ctx, req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return domain.Session{}, fmt.Errorf("login: server returned no user: %w", domain.ErrUnauthenticated)
	}

	sess := domain.Session{
		UserID:       resp.User.ID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	prev, err := s.load(ctx)
	if err != nil && !errors.Is(err, domain.ErrUnauthenticated) {
		return domain.Session{}, err
	}
	if prev.UserID == sess.UserID && prev.DeviceID != "" {
		sess.DeviceID = prev.DeviceID
	} else {
		dev, err := s.auth.RegisterDevice(ctx, sess.AccessToken, domain.RegisterDeviceRequest{
			Name:       s.device.Name,
			Type:       s.device.Type,
			OS:         s.device.OS,
			AppVersion: s.device.AppVersion,
		})
		if err != nil {
			return domain.Session{}, fmt.Errorf("register device: %w", err)
		}
		sess.DeviceID = dev.ID
	}

	if err := s.save(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.logger.Info("signed in", zap.String("user_id", sess.UserID), zap.String("device_id", sess.DeviceID))
	return sess, nil
}

// Refresh exchanges the refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context) (domain.Session, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.RefreshToken == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}

	tok, err := s.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("refresh: %w", err)
	}
	sess.AccessToken = tok.AccessToken
	if err := s.save(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// Logout forgets the tokens but keeps the device id and any queued mutations.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.load(ctx)
	if errors.Is(err, domain.ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}

	if sess.AccessToken != "" {
		if err := s.auth.Logout(ctx, sess.AccessToken); err != nil {
			s.logger.Warn("server logout failed", zap.Error(err))
		}
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE session SET access_token = '', refresh_token = '' WHERE id = 1`); err != nil {
		return domain.NewStorageError("clear session", err)
	}
	s.logger.Info("signed out", zap.String("user_id", sess.UserID))
	return nil
}

func (s *Service) load(ctx context.Context) (domain.Session, error) {
	var sess domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, device_id, access_token, refresh_token FROM session WHERE id = 1`,
	).Scan(&sess.UserID, &sess.DeviceID, &sess.AccessToken, &sess.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Session{}, domain.NewStorageError("load session", err)
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, device_id, access_token, refresh_token)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			device_id = excluded.device_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token`,
		sess.UserID, sess.DeviceID, sess.AccessToken, sess.RefreshToken,
	)
	if err != nil {
		return domain.NewStorageError("save session", err)
	}
	return nil
}

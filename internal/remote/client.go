package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notesync/internal/domain"
	"notesync/internal/websocket"

	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ Service = (*Client)(nil)

// Client speaks the notes server's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *ws.Dialer
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		dialer:  &ws.Dialer{HandshakeTimeout: timeout},
		logger:  logger.Named("remote"),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) Push(ctx context.Context, sess domain.Session, mutations []domain.Mutation) (domain.PushResponse, error) {
	var out domain.PushResponse
	err := c.do(ctx, "push", http.MethodPost, "/api/v1/sync/push", sess.AccessToken, domain.PushRequest{
		DeviceID:  sess.DeviceID,
		Mutations: mutations,
	}, &out)
	return out, err
}

func (c *Client) Pull(ctx context.Context, sess domain.Session, cursor domain.SyncCursor, limit int) (domain.PullResponse, error) {
	q := url.Values{}
	q.Set("device_id", sess.DeviceID)
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", string(cursor))
	}

	var out domain.PullResponse
	err := c.do(ctx, "pull", http.MethodGet, "/api/v1/sync/pull?"+q.Encode(), sess.AccessToken, nil, &out)
	return out, err
}

// Hints dials the server's websocket and forwards note_changed messages
// until ctx is done or the connection drops.
func (c *Client) Hints(ctx context.Context, sess domain.Session) (<-chan Hint, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {sess.AccessToken}, "device_id": {sess.DeviceID}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		return nil, &domain.RemoteError{Op: "hints", Status: status, Err: err}
	}

	out := make(chan Hint, 16)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("hint stream closed", zap.Error(err))
				}
				return
			}

			dec := json.NewDecoder(bytes.NewReader(frame))
			for {
				var msg websocket.Message
				if err := dec.Decode(&msg); err != nil {
					break
				}
				if msg.Type != websocket.TypeNoteChanged {
					continue
				}
				var p websocket.NoteChangedPayload
				if err := msg.UnmarshalPayload(&p); err != nil {
					continue
				}
				select {
				case out <- Hint{NoteID: p.NoteID, DeviceID: p.DeviceID}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return statusError(op, resp.StatusCode, msg)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &domain.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// statusError maps an HTTP failure onto the engine's error taxonomy. Client
// mistakes are returned as such; everything else is retryable.
func statusError(op string, status int, msg string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrValidation)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrAlreadyExists)
	default:
		return &domain.RemoteError{Op: op, Status: status, Err: errors.New(msg)}
	}
}

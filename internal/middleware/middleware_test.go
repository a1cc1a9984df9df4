package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notesync/pkg/jwt"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type secretValidator string

func (s secretValidator) ValidateToken(token string) (*jwt.Claims, error) {
	return jwt.ValidateToken(token, string(s))
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "middleware-secret"
	valid, _ := jwt.GenerateToken("user-1", time.Hour, secret)

	var seen string
	handler := AuthMiddleware(secretValidator(secret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if seen != tt.wantUser {
				t.Errorf("user = %q, want %q", seen, tt.wantUser)
			}
		})
	}
}

func TestLoggerMiddlewareRecordsStatusAndUser(t *testing.T) {
	const secret = "logger-secret"
	token, _ := jwt.GenerateToken("user-7", time.Hour, secret)

	core, logs := observer.New(zap.InfoLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := LoggerMiddleware(zap.New(core))(AuthMiddleware(secretValidator(secret))(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", fields["status"])
	}
	if fields["user_id"] != "user-7" {
		t.Errorf("user_id field = %v", fields["user_id"])
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware("https://app.example.com", "GET,POST", "Content-Type")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://app.example.com", wantOrigin: "https://app.example.com", wantStatus: http.StatusNoContent},
		{name: "unknown origin", method: http.MethodGet, origin: "https://evil.example.com", wantOrigin: "", wantStatus: http.StatusNoContent},
		{name: "preflight", method: http.MethodOptions, origin: "https://app.example.com", wantOrigin: "https://app.example.com", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

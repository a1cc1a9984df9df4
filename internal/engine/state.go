package engine

import (
	"errors"

	"notesync/internal/domain"
)

type StateKind string

const (
	StateOffline StateKind = "offline"
	StateSyncing StateKind = "syncing"
	StateIdle    StateKind = "idle"
	StateError   StateKind = "error"
)

type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorRemoteUnavailable ErrorKind = "remote_unavailable"
	ErrorUnauthenticated   ErrorKind = "unauthenticated"
	ErrorForbidden         ErrorKind = "forbidden"
	ErrorRejected          ErrorKind = "rejected"
	ErrorStorage           ErrorKind = "storage"
)

// State is a snapshot of the coordinator's state machine.
type State struct {
	Kind    StateKind `json:"kind" yaml:"kind"`
	Error   ErrorKind `json:"error,omitempty" yaml:"error,omitempty"`
	Retries int       `json:"retries" yaml:"retries"`
	// LastSync is the logical millisecond time of the last successful cycle.
	LastSync int64 `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
}

func (s State) String() string {
	if s.Kind == StateError {
		return string(s.Kind) + "(" + string(s.Error) + ")"
	}
	return string(s.Kind)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return ErrorUnauthenticated
	case errors.Is(err, domain.ErrForbidden):
		return ErrorForbidden
	case errors.Is(err, domain.ErrValidation):
		return ErrorRejected
	case errors.Is(err, domain.ErrStorage):
		return ErrorStorage
	default:
		return ErrorRemoteUnavailable
	}
}

// halts reports whether the failure needs a new session before syncing again.
func (k ErrorKind) halts() bool {
	return k == ErrorUnauthenticated || k == ErrorForbidden
}

// retryable reports whether the failure is worth retrying with backoff.
func (k ErrorKind) retryable() bool {
	return k == ErrorRemoteUnavailable || k == ErrorStorage
}

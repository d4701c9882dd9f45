package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCorruptSession is returned when persisted state cannot be decoded.
var ErrCorruptSession = errors.New("session: corrupt persisted state")

// ErrBackendUnavailable wraps I/O failures of networked or file backends.
var ErrBackendUnavailable = errors.New("session: backend unavailable")

// Persisted state keys. They match the keys the web client used, so a store can be
// shared with it when both point at the same backend.
const (
	KeyToken      = "token"
	KeyUser       = "user"
	KeyTrackingID = "audit_session_id"
	KeyExpiresAt  = "expires_at"
)

// Store persists one client session.
//
// Get returns (nil, nil) when no session is stored. Set writes token and user
// atomically with respect to readers; an expiresIn <= 0 records an unknown expiry.
// Set never touches the tracking id. Clear removes token, user, expiry, and
// tracking id together and is idempotent.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, token string, user User, expiresIn time.Duration) error
	Clear(ctx context.Context) error
	GetOrCreateTrackingID(ctx context.Context) (string, error)
}

// NewTrackingID returns a random (version 4) UUID string.
var NewTrackingID = func() string {
	return uuid.NewString()
}

func expiresAt(now time.Time, expiresIn time.Duration) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(expiresIn)
}

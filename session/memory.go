package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	token      string
	user       User
	hasUser    bool
	trackingID string
	expiresAt  time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// WithNow overrides the clock used to derive ExpiresAt.
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *MemoryStore) Get(context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" && !m.hasUser && m.trackingID == "" {
		return nil, nil
	}

	return &Session{
		Token:      m.token,
		User:       m.user,
		TrackingID: m.trackingID,
		ExpiresAt:  m.expiresAt,
	}, nil
}

func (m *MemoryStore) Set(_ context.Context, token string, user User, expiresIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.user = user
	m.hasUser = true
	m.expiresAt = expiresAt(m.now(), expiresIn)
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.user = User{}
	m.hasUser = false
	m.trackingID = ""
	m.expiresAt = time.Time{}
	return nil
}

func (m *MemoryStore) GetOrCreateTrackingID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.trackingID == "" {
		m.trackingID = NewTrackingID()
	}
	return m.trackingID, nil
}

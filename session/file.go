package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type fileDocument struct {
	Token      string          `json:"token,omitempty"`
	User       json.RawMessage `json:"user,omitempty"`
	TrackingID string          `json:"audit_session_id,omitempty"`
	ExpiresAt  int64           `json:"expires_at,omitempty"`
}

// FileStore persists the session as one JSON document. Every write replaces the
// file atomically, so a crash never leaves token and user out of step.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates the parent directory if needed. The file itself is
// created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (fileDocument, error) {
	var doc fileDocument

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return doc, nil
}

func (f *FileStore) save(doc fileDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := os.Chmod(f.path, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (f *FileStore) Get(context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	if doc.Token == "" && len(doc.User) == 0 && doc.TrackingID == "" {
		return nil, nil
	}

	sess := &Session{Token: doc.Token, TrackingID: doc.TrackingID}
	if len(doc.User) > 0 {
		if err := json.Unmarshal(doc.User, &sess.User); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrCorruptSession, err)
		}
	}
	if doc.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(doc.ExpiresAt, 0)
	}
	return sess, nil
}

func (f *FileStore) Set(_ context.Context, token string, user User, expiresIn time.Duration) error {
	userRaw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil && !errors.Is(err, ErrCorruptSession) {
		return err
	}
	doc.Token = token
	doc.User = userRaw
	doc.ExpiresAt = 0
	if exp := expiresAt(f.now(), expiresIn); !exp.IsZero() {
		doc.ExpiresAt = exp.Unix()
	}
	return f.save(doc)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (f *FileStore) GetOrCreateTrackingID(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", err
	}
	if doc.TrackingID != "" {
		return doc.TrackingID, nil
	}
	doc.TrackingID = NewTrackingID()
	if err := f.save(doc); err != nil {
		return "", err
	}
	return doc.TrackingID, nil
}

// Package session keeps track of live admin sessions.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// Session is the data stored for each issued admin token.
type Session struct {
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions keyed by the hash of their token id.
type Store interface {
	Save(ctx context.Context, tokenHash string, s Session) error
	Lookup(ctx context.Context, tokenHash string) (Session, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore is the process-local Store used when no Redis is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, tokenHash string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = s
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, tokenHash string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, tokenHash)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *MemoryStore) RevokeAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	m.sessions = make(map[string]Session)
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// SessionStore implements auth.SessionStore with a mutex-guarded map.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session // keyed by session token
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]auth.Session),
	}
}

// Create stores a new session, replacing any session with the same token.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	if session == nil || session.ID == "" {
		return oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session
	return nil
}

// Get returns a copy of the session for id.
func (s *SessionStore) Get(_ context.Context, id string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// Delete removes the session for id.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)

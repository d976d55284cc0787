package oauth

import (
	"sync"

	domain "github.com/dmaier/listify/pkg/types"
)

// SessionStore holds at most one OAuth session per provider.
type SessionStore interface {
	Get(provider domain.Provider) (*domain.OAuthSession, bool)
	Put(session *domain.OAuthSession)
	Delete(provider domain.Provider)
}

// MemorySessionStore is the in-process SessionStore. Sessions do not
// survive a restart; the operator re-authorizes after deploys.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.Provider]*domain.OAuthSession
}

// NewMemorySessionStore creates an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[domain.Provider]*domain.OAuthSession),
	}
}

// Get returns a copy of the stored session, so callers cannot mutate the
// store's state without going through Put.
func (s *MemorySessionStore) Get(provider domain.Provider) (*domain.OAuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[provider]
	if !ok {
		return nil, false
	}
	copied := *session
	return &copied, true
}

// Put replaces the session for its provider wholesale.
func (s *MemorySessionStore) Put(session *domain.OAuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.Provider] = &copied
}

// Delete removes the session for the provider, if any.
func (s *MemorySessionStore) Delete(provider domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, provider)
}

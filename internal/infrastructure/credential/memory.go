package credential

import "sync"

// MemoryStore is an in-memory CredentialStore for tests and ephemeral
// sessions.
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	identity string
}

// NewMemoryStore creates a MemoryStore holding the given token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Token returns the stored session token, or an empty string when no session
// is active.
func (s *MemoryStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// SetToken stores the session token.
func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// SetIdentity caches the identity associated with the current session.
func (s *MemoryStore) SetIdentity(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	return nil
}

// Identity returns the cached identity.
func (s *MemoryStore) Identity() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, nil
}

// Clear purges the session token and cached identity.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = ""
	return nil
}

// Package credential provides implementations of the domain.CredentialStore
// contract.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "wallet-notify"
	tokenKey    = "session-token"
	identityKey = "session-identity"
)

// KeyringStore stores the session credential in the system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens the system keyring for the wallet-notify service.
func NewKeyringStore(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("wallet-notify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// Token returns the stored session token, or an empty string when no session
// is active.
func (s *KeyringStore) Token() (string, error) {
	item, err := s.ring.Get(tokenKey)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting session token: %w", err)
	}
	return string(item.Data), nil
}

// SetToken stores the session token.
func (s *KeyringStore) SetToken(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("setting session token: %w", err)
	}
	return nil
}

// SetIdentity caches the identity associated with the current session.
func (s *KeyringStore) SetIdentity(identity string) error {
	err := s.ring.Set(keyring.Item{
		Key:  identityKey,
		Data: []byte(identity),
	})
	if err != nil {
		return fmt.Errorf("setting session identity: %w", err)
	}
	return nil
}

// Clear purges the session token and any cached identity. Both removals are
// attempted even if the first fails.
func (s *KeyringStore) Clear() error {
	tokenErr := s.ring.Remove(tokenKey)
	if tokenErr == keyring.ErrKeyNotFound {
		tokenErr = nil
	}
	identityErr := s.ring.Remove(identityKey)
	if identityErr == keyring.ErrKeyNotFound {
		identityErr = nil
	}

	if tokenErr != nil {
		return fmt.Errorf("clearing session token: %w", tokenErr)
	}
	if identityErr != nil {
		return fmt.Errorf("clearing session identity: %w", identityErr)
	}
	return nil
}

// Package token persists one AuthToken per provider storage key. The store
// performs no validity checking; deciding whether a token is usable is the
// auth engine's job.
package token

import (
	"errors"
	"sync"

	"github.com/nhle/mailbadge/internal/model"
)

// ErrNotFound is returned by Get when no token is stored under a key.
var ErrNotFound = errors.New("token: not found")

// Store is the persistence contract for provider tokens.
type Store interface {
	// Get returns the token stored under key, or ErrNotFound.
	Get(key string) (*model.AuthToken, error)

	// Set durably stores (or overwrites) the token under key.
	Set(key string, tok *model.AuthToken) error

	// Remove deletes the token under key. Removing an absent key is not
	// an error.
	Remove(key string) error
}

// MemStore is an in-memory Store used by tests and headless runs.
type MemStore struct {
	mu     sync.Mutex
	tokens map[string]model.AuthToken
}

// NewMemStore returns an empty in-memory token store.
func NewMemStore() *MemStore {
	return &MemStore{tokens: make(map[string]model.AuthToken)}
}

func (m *MemStore) Get(key string) (*model.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &tok, nil
}

func (m *MemStore) Set(key string, tok *model.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = *tok
	return nil
}

func (m *MemStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*KeyringStore)(nil)
)

package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/mailbadge/internal/model"
)

const serviceName = "mailbadge"

// KeyringStore stores tokens in the system keyring, one JSON-encoded
// AuthToken per provider storage key.
type KeyringStore struct {
	open func() (keyring.Keyring, error)
}

// NewKeyringStore returns a Store backed by the system keyring, falling
// back to an encrypted file under fileDir when no native backend exists.
func NewKeyringStore(fileDir string) *KeyringStore {
	return &KeyringStore{
		open: func() (keyring.Keyring, error) {
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
				FilePasswordFunc:         keyring.FixedStringPrompt("mailbadge-file-key"),
				KeychainTrustApplication: true,
			})
			if err != nil {
				return nil, fmt.Errorf("opening keyring: %w", err)
			}
			return ring, nil
		},
	}
}

func (s *KeyringStore) Get(key string) (*model.AuthToken, error) {
	ring, err := s.open()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting token %q: %w", key, err)
	}

	var tok model.AuthToken
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("decoding token %q: %w", key, err)
	}
	return &tok, nil
}

func (s *KeyringStore) Set(key string, tok *model.AuthToken) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token %q: %w", key, err)
	}

	if err := ring.Set(keyring.Item{Key: key, Data: data}); err != nil {
		return fmt.Errorf("setting token %q: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Remove(key string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("removing token %q: %w", key, err)
	}
	return nil
}

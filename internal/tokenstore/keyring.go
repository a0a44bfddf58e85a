package tokenstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/vidflow-dev/vidflow/internal/models"
)

const (
	service    = "vidflow-cli"
	accessKey  = "access_token"
	refreshKey = "refresh_token"
)

// Keyring persists tokens in the OS keychain/credential manager, namespaced
// per API so several backends can be used side by side
type Keyring struct {
	namespace string
}

// NewKeyring creates a keyring store for the given API base URL
func NewKeyring(apiURL string) *Keyring {
	return &Keyring{namespace: apiURL}
}

func (k *Keyring) key(name string) string {
	return fmt.Sprintf("%s:%s", k.namespace, name)
}

// Load retrieves the token pair. A missing refresh token is not an error.
func (k *Keyring) Load() (models.TokenPair, error) {
	access, err := keyring.Get(service, k.key(accessKey))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return models.TokenPair{}, ErrNotFound
		}
		return models.TokenPair{}, fmt.Errorf("failed to load token: %w", err)
	}

	refresh, err := keyring.Get(service, k.key(refreshKey))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return models.TokenPair{}, fmt.Errorf("failed to load refresh token: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Save writes both tokens; an empty refresh token removes the stored one
func (k *Keyring) Save(pair models.TokenPair) error {
	if err := keyring.Set(service, k.key(accessKey), pair.Access); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	if pair.Refresh == "" {
		return deleteKey(k.key(refreshKey))
	}
	if err := keyring.Set(service, k.key(refreshKey), pair.Refresh); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Clear removes both tokens
func (k *Keyring) Clear() error {
	return errors.Join(
		deleteKey(k.key(accessKey)),
		deleteKey(k.key(refreshKey)),
	)
}

func deleteKey(key string) error {
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

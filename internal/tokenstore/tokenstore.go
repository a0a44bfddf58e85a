package tokenstore

import (
	"errors"
	"sync"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// ErrNotFound is returned by Load when no credentials are stored
var ErrNotFound = errors.New("not authenticated. Please run 'vidflow login' first")

// Store defines the credential storage operations.
// This allows us to swap the OS keyring for memory in tests
type Store interface {
	Load() (models.TokenPair, error)
	Save(pair models.TokenPair) error
	Clear() error
}

// Memory keeps tokens in process memory
type Memory struct {
	mu   sync.RWMutex
	pair models.TokenPair
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() (models.TokenPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pair.Access == "" && m.pair.Refresh == "" {
		return models.TokenPair{}, ErrNotFound
	}
	return m.pair, nil
}

func (m *Memory) Save(pair models.TokenPair) error {
	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.pair = models.TokenPair{}
	m.mu.Unlock()
	return nil
}

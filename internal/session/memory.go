package session

import (
	"context"
	"sync"

	"github.com/pribylovaa/kiosk-admin/internal/models"
)

// MemoryStore хранит пару в памяти процесса. Подходит для тестов и одиночного инстанса.
type MemoryStore struct {
	mu   sync.RWMutex
	pair models.TokenPair
	ok   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(context.Context) (models.TokenPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pair, s.ok, nil
}

func (s *MemoryStore) Set(_ context.Context, pair models.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair, s.ok = pair, !pair.IsZero()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair, s.ok = models.TokenPair{}, false
	return nil
}

var _ Store = (*MemoryStore)(nil)

// Package memory provides in-memory implementations of the storage
// interfaces, used by tests and by runs over CSV data that never touch
// a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Instrument // keyed by code
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		data: make(map[string]*domain.Instrument),
	}
}

var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// Insert adds a new instrument. Returns ErrDuplicateKey if the code exists.
func (s *InstrumentStore) Insert(_ context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.Code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inst.Code]; exists {
		return storage.ErrDuplicateKey
	}
	instCopy := *inst
	s.data[inst.Code] = &instCopy
	return nil
}

// InsertBulk adds multiple instruments atomically. Fails the entire
// batch on any duplicate.
func (s *InstrumentStore) InsertBulk(_ context.Context, instruments []*domain.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		if inst == nil || inst.Code == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[inst.Code]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[inst.Code]; exists {
			return storage.ErrDuplicateKey
		}
		batch[inst.Code] = struct{}{}
	}

	for _, inst := range instruments {
		instCopy := *inst
		s.data[inst.Code] = &instCopy
	}
	return nil
}

// GetByCode retrieves one instrument. Returns ErrNotFound if not present.
func (s *InstrumentStore) GetByCode(_ context.Context, code string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.data[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	instCopy := *inst
	return &instCopy, nil
}

// GetAll retrieves the full universe, ordered by code ASC.
func (s *InstrumentStore) GetAll(_ context.Context) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Instrument, 0, len(s.data))
	for _, inst := range s.data {
		instCopy := *inst
		result = append(result, &instCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result, nil
}

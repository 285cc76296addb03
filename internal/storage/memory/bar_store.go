package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceBar // keyed by (code, date)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.PriceBar),
	}
}

var _ storage.BarStore = (*BarStore)(nil)

// barKey generates a unique key for a bar.
func barKey(code string, date time.Time) string {
	return fmt.Sprintf("%s|%s", code, domain.Day(date).Format("2006-01-02"))
}

// InsertBulk adds multiple bars. Fails the entire batch on a duplicate
// (code, date).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Code == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Code, b.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, b := range bars {
		barCopy := *b
		barCopy.Date = domain.Day(b.Date)
		s.data[barKey(b.Code, b.Date)] = &barCopy
	}
	return nil
}

// GetByCode retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByCode(_ context.Context, code string) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.Code == code {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetByDateRange retrieves bars for an instrument within [start, end]
// (inclusive), ordered by date ASC.
func (s *BarStore) GetByDateRange(_ context.Context, code string, start, end time.Time) ([]*domain.PriceBar, error) {
	start = domain.Day(start)
	end = domain.Day(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.Code == code && !b.Date.Before(start) && !b.Date.After(end) {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetDateRange returns the min and max bar dates across all data.
func (s *BarStore) GetDateRange(_ context.Context) (min, max time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := true
	for _, b := range s.data {
		if first {
			min, max = b.Date, b.Date
			first = false
			continue
		}
		if b.Date.Before(min) {
			min = b.Date
		}
		if b.Date.After(max) {
			max = b.Date
		}
	}
	return min, max, nil
}

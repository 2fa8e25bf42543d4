package testing

import (
	"context"
	"sync"

	"github.com/aristath/lookthrough/internal/domain"
)

// MockStore is an in-memory price and metadata provider.
type MockStore struct {
	mu       sync.RWMutex
	prices   map[string]map[string]float64
	metadata map[string]domain.RawHolding
	err      error
	calls    int
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		prices:   make(map[string]map[string]float64),
		metadata: make(map[string]domain.RawHolding),
	}
}

// SetPrices sets the history returned for id
func (m *MockStore) SetPrices(id string, prices domain.PriceHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[id] = prices
}

// SetMetadata sets the metadata returned for id
func (m *MockStore) SetMetadata(id string, raw domain.RawHolding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[id] = raw
}

// SetError makes every lookup fail with err
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of lookups served
func (m *MockStore) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// PriceHistory implements the price provider contract
func (m *MockStore) PriceHistory(ctx context.Context, id string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]float64, len(m.prices[id]))
	for d, p := range m.prices[id] {
		out[d] = p
	}
	return out, nil
}

// Metadata implements the metadata provider contract
func (m *MockStore) Metadata(ctx context.Context, id string) (*domain.RawHolding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	raw, ok := m.metadata[id]
	if !ok {
		return nil, nil
	}
	return &raw, nil
}

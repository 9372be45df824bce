package repositories

import (
	"context"
	"daysim/internal/domain"
	"slices"
	"sync"
)

// MemoryObservationSink keeps estimation rows in memory. Used by tests and
// dry runs.
type MemoryObservationSink struct {
	mu   sync.Mutex
	rows []domain.Observation
}

func NewMemoryObservationSink() *MemoryObservationSink {
	return &MemoryObservationSink{}
}

func (m *MemoryObservationSink) WriteObservation(_ context.Context, obs domain.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, obs)
	return nil
}

// Observations returns the rows written so far, in arrival order.
func (m *MemoryObservationSink) Observations() []domain.Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}

func (m *MemoryObservationSink) Close() error { return nil }

package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/keepalive/internal/domain"
)

const DefaultCapacity = 100

// Store keeps the most recent tick reports in process memory.
type Store struct {
	mu       sync.RWMutex
	reports  []domain.TickReport // oldest first
	capacity int
}

func New() *Store {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		reports:  make([]domain.TickReport, 0, capacity),
		capacity: capacity,
	}
}

func (m *Store) Save(ctx context.Context, r domain.TickReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == m.capacity {
		copy(m.reports, m.reports[1:])
		m.reports = m.reports[:len(m.reports)-1]
	}
	m.reports = append(m.reports, r)
	return nil
}

func (m *Store) Latest(ctx context.Context) (*domain.TickReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.reports) == 0 {
		return nil, nil
	}
	r := m.reports[len(m.reports)-1]
	return &r, nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.TickReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.reports) {
		limit = len(m.reports)
	}
	out := make([]domain.TickReport, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.reports[i])
	}
	return out, nil
}

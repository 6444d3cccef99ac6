package counter

import (
	"context"
	"sync"
)

// InMemory keeps counters in process memory. It honours the same atomicity
// contract as the durable stores but loses state on restart.
type InMemory struct {
	mu     sync.Mutex
	values map[Name]int64
}

func NewInMemory() *InMemory {
	return &InMemory{values: make(map[Name]int64)}
}

func (s *InMemory) Allocate(ctx context.Context, name Name, count int64) (int64, error) {
	if err := validate(name, count); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.values[name]
	if wouldOverflow(start, count) {
		return 0, overflowErr(name, count)
	}
	s.values[name] = start + count
	return start, nil
}

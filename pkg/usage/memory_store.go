package usage

import (
	"context"
	"sync"
	"time"

	"github.com/formloom/quota/pkg/plan"
)

type counter struct {
	count     int64
	updatedAt time.Time
}

// MemoryStore is a process-local Store. It serves tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[Key]*counter
	now      func() time.Time
}

var _ ConditionalStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[Key]*counter),
		now:      time.Now,
	}
}

func (s *MemoryStore) Increment(ctx context.Context, key Key, amount int64) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counterLocked(key)
	c.count += amount
	c.updatedAt = s.now().UTC()
	return c.count, nil
}

func (s *MemoryStore) IncrementIfBelow(ctx context.Context, key Key, limit, amount int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if c, ok := s.counters[key]; ok {
		current = c.count
	}
	if current+amount > limit {
		return current, false, nil
	}

	c := s.counterLocked(key)
	c.count += amount
	c.updatedAt = s.now().UTC()
	return c.count, true, nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.counters[key]; ok {
		return c.count, nil
	}
	return 0, nil
}

func (s *MemoryStore) GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error) {
	out := zeroSnapshot(actions)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range actions {
		if c, ok := s.counters[Key{TenantID: tenantID, Action: a, Period: period}]; ok {
			out[a] = c.count
		}
	}
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}

// UpdatedAt returns when the counter last changed.
func (s *MemoryStore) UpdatedAt(key Key) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[key]
	if !ok {
		return time.Time{}, false
	}
	return c.updatedAt, true
}

// Must be called with lock held.
func (s *MemoryStore) counterLocked(key Key) *counter {
	c, ok := s.counters[key]
	if !ok {
		c = &counter{}
		s.counters[key] = c
	}
	return c
}

package subscription

import (
	"context"
	"slices"
	"sync"
)

// Store persists subscriptions. Each tenant has one current record keyed by TenantID;
// superseded records move to history and are never deleted.
type Store interface {
	// Get returns the tenant's current subscription or ErrSubscriptionNotFound.
	Get(ctx context.Context, tenantID string) (*Subscription, error)

	// Create inserts sub unless the tenant already has a record, and returns whichever
	// record is stored afterwards. Concurrent provisioning converges on one record.
	Create(ctx context.Context, sub *Subscription) (*Subscription, error)

	// Save updates the current record when it still carries sub.ID and sub.Revision and
	// is not cancelled, and increments the stored revision. A missing record or one with
	// another ID returns ErrSubscriptionNotFound; a newer revision or a cancelled record
	// returns ErrConflict.
	Save(ctx context.Context, sub *Subscription) error

	// Supersede archives prev and installs next as the tenant's current record.
	Supersede(ctx context.Context, prev, next *Subscription) error

	// History returns superseded records, oldest first.
	History(ctx context.Context, tenantID string) ([]*Subscription, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	current map[string]*Subscription
	history map[string][]*Subscription
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		current: make(map[string]*Subscription),
		history: make(map[string][]*Subscription),
	}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.current[tenantID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.current[sub.TenantID]; ok {
		return existing.clone(), nil
	}
	s.current[sub.TenantID] = sub.clone()
	return sub.clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.current[sub.TenantID]
	if !ok || existing.ID != sub.ID {
		return ErrSubscriptionNotFound
	}
	if existing.Revision != sub.Revision || existing.IsCancelled() {
		return ErrConflict
	}
	saved := sub.clone()
	saved.Revision++
	s.current[sub.TenantID] = saved
	return nil
}

func (s *MemoryStore) Supersede(ctx context.Context, prev, next *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.current[prev.TenantID]
	if !ok || existing.ID != prev.ID {
		return ErrSubscriptionNotFound
	}
	s.history[prev.TenantID] = append(s.history[prev.TenantID], prev.clone())
	s.current[next.TenantID] = next.clone()
	return nil
}

func (s *MemoryStore) History(ctx context.Context, tenantID string) ([]*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Subscription, 0, len(s.history[tenantID]))
	for _, sub := range s.history[tenantID] {
		out = append(out, sub.clone())
	}
	slices.SortStableFunc(out, func(a, b *Subscription) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

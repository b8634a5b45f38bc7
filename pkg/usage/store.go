package usage

import (
	"context"

	"github.com/formloom/quota/pkg/plan"
)

// Store persists per-tenant, per-action, per-period counters.
// Counters only grow within a period; mutation goes through Increment,
// never through read-modify-write in the caller's memory.
type Store interface {
	// Increment atomically adds amount to the counter and returns the new value.
	// Two concurrent increments of 1 must yield 2.
	Increment(ctx context.Context, key Key, amount int64) (int64, error)

	// Get returns the counter value, or 0 if it was never incremented.
	Get(ctx context.Context, key Key) (int64, error)

	// GetMany reads several actions of one tenant and period in a single round trip.
	// Actions without a counter are reported as 0.
	GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error)

	// Reset deletes the counter. Administrative use only.
	Reset(ctx context.Context, key Key) error
}

// ConditionalStore is implemented by backends that can check a limit and increment
// in one atomic step, which removes the check-then-record race entirely.
type ConditionalStore interface {
	Store

	// IncrementIfBelow adds amount only if the result stays within limit.
	// It returns the counter value after the operation and whether the increment happened.
	IncrementIfBelow(ctx context.Context, key Key, limit, amount int64) (count int64, ok bool, err error)
}

func zeroSnapshot(actions []plan.Action) map[plan.Action]int64 {
	out := make(map[plan.Action]int64, len(actions))
	for _, a := range actions {
		out[a] = 0
	}
	return out
}

package usage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/usage"
)

// runStoreSuite exercises behaviour every ConditionalStore must share.
// tenant must be unique per call so backends with shared state stay isolated.
func runStoreSuite(t *testing.T, store usage.ConditionalStore, tenant string) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("missing counter reads zero", func(t *testing.T) {
		n, err := store.Get(ctx, usage.NewKey(tenant+"-empty", plan.ActionForms, start))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("increment returns new value", func(t *testing.T) {
		key := usage.NewKey(tenant+"-inc", plan.ActionResponses, start)

		n, err := store.Increment(ctx, key, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.Increment(ctx, key, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := store.Increment(ctx, usage.NewKey(tenant, plan.ActionForms, start), 0)
		assert.ErrorIs(t, err, usage.ErrInvalidAmount)

		_, err = store.Increment(ctx, usage.NewKey("", plan.ActionForms, start), 1)
		assert.ErrorIs(t, err, usage.ErrInvalidKey)

		_, _, err = store.IncrementIfBelow(ctx, usage.NewKey(tenant, plan.ActionForms, start), 3, -1)
		assert.ErrorIs(t, err, usage.ErrInvalidAmount)
	})

	t.Run("periods are isolated", func(t *testing.T) {
		first := usage.NewKey(tenant+"-period", plan.ActionForms, start)
		next := usage.NewKey(tenant+"-period", plan.ActionForms, start.AddDate(0, 1, 0))

		_, err := store.Increment(ctx, first, 3)
		require.NoError(t, err)

		n, err := store.Get(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("get many fills missing actions with zero", func(t *testing.T) {
		tid := tenant + "-many"
		period := usage.PeriodFor(start)

		_, err := store.Increment(ctx, usage.Key{TenantID: tid, Action: plan.ActionForms, Period: period}, 2)
		require.NoError(t, err)
		_, err = store.Increment(ctx, usage.Key{TenantID: tid, Action: plan.ActionStorage, Period: period}, 50)
		require.NoError(t, err)

		got, err := store.GetMany(ctx, tid, period, plan.Actions())
		require.NoError(t, err)
		assert.Len(t, got, len(plan.Actions()))
		assert.Equal(t, int64(2), got[plan.ActionForms])
		assert.Equal(t, int64(50), got[plan.ActionStorage])
		assert.Equal(t, int64(0), got[plan.ActionAIGenerations])
	})

	t.Run("conditional increment stops at limit", func(t *testing.T) {
		key := usage.NewKey(tenant+"-cond", plan.ActionForms, start)

		for i := int64(1); i <= 3; i++ {
			n, ok, err := store.IncrementIfBelow(ctx, key, 3, 1)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, i, n)
		}

		n, ok, err := store.IncrementIfBelow(ctx, key, 3, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(3), n)
	})

	t.Run("conditional increment larger than limit on fresh counter", func(t *testing.T) {
		key := usage.NewKey(tenant+"-big", plan.ActionStorage, start)

		n, ok, err := store.IncrementIfBelow(ctx, key, 10, 11)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(0), n)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		key := usage.NewKey(tenant+"-concurrent", plan.ActionAPICalls, start)
		const workers = 50

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Increment(ctx, key, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		n, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), n)
	})

	t.Run("concurrent conditional increments never exceed limit", func(t *testing.T) {
		key := usage.NewKey(tenant+"-race", plan.ActionAIGenerations, start)
		const (
			workers = 40
			limit   = 10
		)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := store.IncrementIfBelow(ctx, key, limit, 1)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, limit, granted)
		n, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), n)
	})

	t.Run("reset removes counter", func(t *testing.T) {
		key := usage.NewKey(tenant+"-reset", plan.ActionTeamMembers, start)

		_, err := store.Increment(ctx, key, 2)
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, key))

		n, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

type brokenStore struct {
	*usage.MemoryStore
}

func (brokenStore) Get(context.Context, usage.Key) (int64, error) {
	return 0, errors.New("redis: connection pool timeout")
}

func (brokenStore) Increment(context.Context, usage.Key, int64) (int64, error) {
	return 0, errors.New("redis: connection pool timeout")
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	catalog := plan.MustCatalog(plan.DefaultPlans()...)
	resolver := subscription.NewResolver(subscription.NewMemoryStore(), catalog)
	e := New(catalog, resolver, usage.NewMemoryStore(), WithMetrics(m))
	ctx := context.Background()

	for range 3 {
		e.Consume(ctx, "tenant-1", plan.ActionForms, 1)
	}
	e.CanPerform(ctx, "tenant-1", plan.ActionForms, 1)
	e.CanPerform(ctx, "", plan.ActionForms, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.decisions.WithLabelValues("forms", outcomeAllowed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("forms", outcomeExceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("forms", outcomeInvalid)))

	count, err := testutil.GatherAndCount(reg, "quota_store_operation_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMetrics_CountsFallbacksAndRecordFailures(t *testing.T) {
	t.Parallel()

	m := NewMetrics(nil)

	catalog := plan.MustCatalog(plan.DefaultPlans()...)
	resolver := subscription.NewResolver(subscription.NewMemoryStore(), catalog)
	e := New(catalog, resolver, brokenStore{MemoryStore: usage.NewMemoryStore()}, WithMetrics(m))
	ctx := context.Background()

	d := e.CanPerform(ctx, "tenant-1", plan.ActionResponses, 1)
	assert.True(t, d.Degraded)
	e.CanPerform(ctx, "tenant-1", plan.ActionResponses, 1)

	require.NoError(t, e.RecordUsage(ctx, "tenant-1", plan.ActionResponses, 1))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("responses", outcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("counter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordFailures.WithLabelValues("responses")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("counter", "hit")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.decision("forms", outcomeAllowed)
		m.fallback("counter")
		m.recordFailure("forms")
		m.cacheLookup("counter", true)
	})
}

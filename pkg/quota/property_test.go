package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/quota"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

// catalogWithFormsLimit returns the built-in plans with the free forms limit replaced.
func catalogWithFormsLimit(limit int64) *plan.Catalog {
	plans := plan.DefaultPlans()
	plans[0].Limits[plan.ActionForms] = limit
	return plan.MustCatalog(plans...)
}

func TestCanPerformProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	ctx := context.Background()
	clock := subscription.WithClock(func() time.Time { return testNow })

	properties.Property("allowed iff usage plus amount fits the limit", prop.ForAll(
		func(limit, used, amount int64) bool {
			catalog := catalogWithFormsLimit(limit)
			store := usage.NewMemoryStore()
			e := quota.New(catalog, subscription.NewResolver(subscription.NewMemoryStore(), catalog, clock), store)

			if used > 0 {
				if _, err := store.Increment(ctx, usage.NewKey("tenant", plan.ActionForms, testNow), used); err != nil {
					return false
				}
			}

			d := e.CanPerform(ctx, "tenant", plan.ActionForms, amount)
			return d.Allowed == (used+amount <= limit) && d.CurrentUsage == used && d.Limit == limit
		},
		gen.Int64Range(0, 50),
		gen.Int64Range(0, 60),
		gen.Int64Range(1, 20),
	))

	properties.Property("unlimited is always allowed", prop.ForAll(
		func(used, amount int64) bool {
			catalog := catalogWithFormsLimit(plan.Unlimited)
			store := usage.NewMemoryStore()
			e := quota.New(catalog, subscription.NewResolver(subscription.NewMemoryStore(), catalog, clock), store)

			if _, err := store.Increment(ctx, usage.NewKey("tenant", plan.ActionForms, testNow), used); err != nil {
				return false
			}
			d := e.CanPerform(ctx, "tenant", plan.ActionForms, amount)
			return d.Allowed && d.Unlimited
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 1_000_000),
	))

	properties.Property("consume never exceeds the limit", prop.ForAll(
		func(limit int64, amounts []int64) bool {
			catalog := catalogWithFormsLimit(limit)
			store := usage.NewMemoryStore()
			e := quota.New(catalog, subscription.NewResolver(subscription.NewMemoryStore(), catalog, clock), store)

			var admitted int64
			for _, n := range amounts {
				if e.Consume(ctx, "tenant", plan.ActionForms, n).Allowed {
					admitted += n
				}
			}
			count, err := store.Get(ctx, usage.NewKey("tenant", plan.ActionForms, testNow))
			return err == nil && count == admitted && count <= limit
		},
		gen.Int64Range(0, 40),
		gen.SliceOf(gen.Int64Range(1, 10)),
	))

	properties.TestingRun(t)
}

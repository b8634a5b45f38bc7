// Package quota enforces per-plan usage limits for tenants.
//
// An Engine combines a plan catalog, a subscription resolver and a usage store:
//
//	catalog := plan.MustCatalog(plan.DefaultPlans()...)
//	subs := subscription.NewResolver(subscription.NewMemoryStore(), catalog)
//	engine := quota.New(catalog, subs, usage.NewRedisStore(client),
//		quota.WithLogger(log),
//		quota.WithMetrics(quota.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//
// Write paths use CheckAndRecord: the side effect runs only when the action is
// allowed, and usage is recorded after it succeeds.
//
//	d, err := engine.CheckAndRecord(ctx, tenantID, plan.ActionForms, 1, func(ctx context.Context) error {
//		return forms.Insert(ctx, form)
//	})
//	if errors.Is(err, quota.ErrQuotaExceeded) {
//		// d.Reason names the plan and its limit
//	}
//
// The check and the record are separate store calls, so concurrent requests can
// overshoot a limit by at most (in-flight requests - 1) * amount. Consume closes
// that window when the store implements usage.ConditionalStore.
//
// # Failure behavior
//
// Quota denials are the only errors end users see. When the usage or subscription
// store fails or times out, decisions fall back to "allowed, zero usage, unlimited"
// with Degraded set, and the fallback is cached for the counter TTL. Recording never
// returns store errors; failures are logged and counted.
//
// # Caching
//
// Single counters are cached for DefaultCounterTTL and multi-action snapshots for
// DefaultSnapshotTTL. Every write through the engine invalidates both for the key
// it touched. Writes made directly against the store become visible when the
// cached entries expire.
package quota

// Package subscription resolves a tenant to its current plan and subscription status.
//
// Every tenant has exactly one current Subscription. Tenants without one are
// provisioned lazily on the catalog's default plan with a 30-day billing period the
// first time Resolver.Get sees them. Provisioning is idempotent: concurrent first
// calls within a process share one attempt through singleflight, and Store.Create
// is insert-if-absent, so racing processes converge on whichever record was stored
// first.
//
// # Lifecycle
//
// Status changes follow a fixed table:
//
//	active   -> past_due, cancelled
//	past_due -> active, cancelled
//	cancelled is terminal
//
// A cancelled record is never modified again. Resubscribe archives it to history and
// installs a new record with a fresh ID. Records are never deleted.
//
// Cancel with atPeriodEnd only sets CancelAtPeriodEnd and leaves the status active;
// finalizing the cancellation at rollover is the job of an external scheduler.
//
// # Storage
//
// MemoryStore, MongoStore and PostgresStore implement Store. The Postgres tables are
// created by the migrations in package pg.
//
//	resolver := subscription.NewResolver(subscription.NewMemoryStore(), catalog)
//	sub, err := resolver.Get(ctx, "tenant-1")
//	if err != nil {
//		return err
//	}
//	fmt.Println(sub.PlanID, sub.Status)
package subscription

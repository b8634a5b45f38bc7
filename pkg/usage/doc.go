// Package usage stores per-tenant usage counters.
//
// A counter is identified by a Key: tenant, action and billing period. Period keys
// are derived from the subscription's period start, so a new billing period reads
// and writes a fresh set of counters and old periods are never reset in place.
//
// Every backend increments atomically on the server side:
//
//   - MemoryStore guards a map with a mutex.
//   - RedisStore uses INCRBY and a Lua script for conditional increments.
//   - MongoStore uses upserting $inc updates.
//   - PostgresStore uses INSERT ... ON CONFLICT DO UPDATE ... RETURNING.
//
// All four implement ConditionalStore, which lets callers check a limit and
// consume in one step.
//
//	store := usage.NewRedisStore(client)
//	key := usage.NewKey("tenant-1", plan.ActionForms, sub.CurrentPeriodStart)
//	count, ok, err := store.IncrementIfBelow(ctx, key, 3, 1)
package usage

// Package pg connects to PostgreSQL and owns the schema of the Postgres usage
// and subscription stores.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	db := pg.OpenDB(pool)
//	if err := pg.Migrate(ctx, db, cfg, log); err != nil {
//		return err
//	}
//	counters := usage.NewPostgresStore(db)
//	subs := subscription.NewPostgresStore(db)
//
// Migrations are embedded goose SQL files and create the usage_counters,
// subscriptions and subscription_history tables.
package pg

// Package mongo connects to MongoDB for the usage and subscription stores.
//
// Config is loaded from MONGODB_* environment variables:
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	counters := usage.NewMongoStore(db.Collection("usage_counters"))
//	subs := subscription.NewMongoStore(db)
//
// Connect retries failed pings RetryAttempts times, RetryInterval apart, and stops
// early when ctx is done. Healthcheck adapts the client to a readiness check.
package mongo

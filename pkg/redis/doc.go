// Package redis connects to Redis for the usage counter store.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := usage.NewRedisStore(client, usage.WithKeyPrefix(cfg.KeyPrefix))
//
// Connect reuses one client across ping attempts and gives up when
// ConnectTimeout elapses. Healthcheck adapts any redis.UniversalClient to a
// readiness check.
package redis

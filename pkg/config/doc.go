// Package config loads configuration structs from environment variables.
//
// It combines github.com/joho/godotenv, which reads optional .env files into the
// process environment once, with github.com/caarlos0/env/v11, which parses the
// environment into structs using `env` and `envDefault` tags. Parse errors wrap
// ErrParsingConfig.
//
// Infrastructure packages ship tagged Config structs (mongo.Config, redis.Config,
// pg.Config, httpserver.Config) so a binary can compose them:
//
//	var cfg struct {
//		Redis redis.Config
//		HTTP  httpserver.Config
//	}
//	config.MustLoad(&cfg)
//
// Tests pass an explicit environment instead of mutating the process:
//
//	err := config.Load(&cfg, config.WithEnvironment(map[string]string{"REDIS_URL": "redis://localhost:6379"}))
package config

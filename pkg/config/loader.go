package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Option configures a single Load call.
type Option func(*options)

type options struct {
	prefix   string
	environ  map[string]string
	dotenv   []string
	skipFile bool
}

// WithPrefix prepends prefix to every env tag, e.g. "QUOTA_" turns REDIS_URL into QUOTA_REDIS_URL.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvironment parses from m instead of the process environment. Dotenv files are skipped.
func WithEnvironment(m map[string]string) Option {
	return func(o *options) {
		o.environ = m
		o.skipFile = true
	}
}

// WithDotenv reads the given files instead of ./.env. Missing files are ignored;
// variables already set in the process win over file values.
func WithDotenv(files ...string) Option {
	return func(o *options) { o.dotenv = files }
}

// Load parses environment variables into v using its `env` struct tags.
// The first call also reads .env files into the process environment.
//
//	type Config struct {
//		UsageBackend string        `env:"QUOTA_USAGE_BACKEND" envDefault:"memory"`
//		StoreTimeout time.Duration `env:"QUOTA_STORE_TIMEOUT" envDefault:"5s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipFile {
		dotenvOnce.Do(func() {
			// the files are optional
			_ = godotenv.Load(o.dotenv...)
		})
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      o.prefix,
		Environment: o.environ,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is like Load but panics on failure. Use it for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

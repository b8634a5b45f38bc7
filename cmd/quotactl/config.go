package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/formloom/quota/pkg/httpserver"
	"github.com/formloom/quota/pkg/logger"
	"github.com/formloom/quota/pkg/mongo"
	"github.com/formloom/quota/pkg/pg"
	"github.com/formloom/quota/pkg/redis"
)

// Storage backends selectable per store.
const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendMongo    = "mongo"
	backendPostgres = "postgres"
)

var (
	usageBackends        = []string{backendMemory, backendRedis, backendMongo, backendPostgres}
	subscriptionBackends = []string{backendMemory, backendMongo, backendPostgres}
)

var errUnsupportedBackend = errors.New("unsupported backend")

type appConfig struct {
	UsageBackend        string `env:"QUOTA_USAGE_BACKEND" envDefault:"memory"`
	SubscriptionBackend string `env:"QUOTA_SUBSCRIPTION_BACKEND" envDefault:"memory"`
	PlansFile           string `env:"QUOTA_PLANS_FILE"`
	AutoMigrate         bool   `env:"QUOTA_AUTO_MIGRATE" envDefault:"false"`

	StoreTimeout  time.Duration `env:"QUOTA_STORE_TIMEOUT" envDefault:"5s"`
	CounterTTL    time.Duration `env:"QUOTA_COUNTER_TTL" envDefault:"5m"`
	SnapshotTTL   time.Duration `env:"QUOTA_SNAPSHOT_TTL" envDefault:"30s"`
	CacheCapacity int           `env:"QUOTA_CACHE_CAPACITY" envDefault:"10000"`

	TenantHeader string `env:"QUOTA_TENANT_HEADER" envDefault:"X-Tenant-ID"`
	TenantDomain string `env:"QUOTA_TENANT_DOMAIN"` // enables subdomain tenants, e.g. "forms.example.com"

	// Empty serves /metrics on the API listener.
	MetricsAddr      string        `env:"QUOTA_METRICS_ADDR" envDefault:":9091"`
	ReadinessTimeout time.Duration `env:"QUOTA_READINESS_TIMEOUT" envDefault:"2s"`

	Log      logger.Config
	HTTP     httpserver.Config
	Postgres pg.Config
	Redis    redis.Config
	Mongo    mongo.Config
}

func (c appConfig) validate() error {
	if !slices.Contains(usageBackends, c.UsageBackend) {
		return fmt.Errorf("%w: QUOTA_USAGE_BACKEND=%q, want one of %v", errUnsupportedBackend, c.UsageBackend, usageBackends)
	}
	if !slices.Contains(subscriptionBackends, c.SubscriptionBackend) {
		return fmt.Errorf("%w: QUOTA_SUBSCRIPTION_BACKEND=%q, want one of %v", errUnsupportedBackend, c.SubscriptionBackend, subscriptionBackends)
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/formloom/quota/pkg/httpserver"
	"github.com/formloom/quota/pkg/logger"
	"github.com/formloom/quota/pkg/mongo"
	"github.com/formloom/quota/pkg/pg"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/quota"
	"github.com/formloom/quota/pkg/quotahttp"
	"github.com/formloom/quota/pkg/redis"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

// app owns the engine and every connection opened for it.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	catalog  *plan.Catalog
	resolver *subscription.Resolver
	engine   *quota.Engine
	registry *prometheus.Registry

	checks  []httpserver.Check
	closers []func()

	sqlDB       *sql.DB
	redisClient *goredis.Client
	mongoDB     *mongodriver.Database
}

func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.catalog, err = loadCatalog(ctx, cfg.PlansFile); err != nil {
		return nil, err
	}

	usageStore, err := a.usageStore(ctx)
	if err != nil {
		return nil, err
	}
	subStore, err := a.subscriptionStore(ctx)
	if err != nil {
		return nil, err
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.resolver = subscription.NewResolver(subStore, a.catalog,
		subscription.WithLogger(log.With(logger.Component("subscription"))))
	a.engine = quota.New(a.catalog, a.resolver, usageStore,
		quota.WithLogger(log.With(logger.Component("quota"))),
		quota.WithMetrics(quota.NewMetrics(a.registry)),
		quota.WithStoreTimeout(cfg.StoreTimeout),
		quota.WithCounterTTL(cfg.CounterTTL),
		quota.WithSnapshotTTL(cfg.SnapshotTTL),
		quota.WithCacheCapacity(cfg.CacheCapacity),
	)

	log.DebugContext(ctx, "quota engine ready",
		slog.String("usage_backend", cfg.UsageBackend),
		slog.String("subscription_backend", cfg.SubscriptionBackend),
		slog.Int("plans", len(a.catalog.Plans())),
	)
	return a, nil
}

func loadCatalog(ctx context.Context, path string) (*plan.Catalog, error) {
	if path == "" {
		return plan.NewCatalog(plan.DefaultPlans()...)
	}
	return plan.LoadCatalog(ctx, plan.NewYAMLSource(path))
}

func (a *app) usageStore(ctx context.Context) (usage.Store, error) {
	switch a.cfg.UsageBackend {
	case backendRedis:
		client, err := a.redis(ctx)
		if err != nil {
			return nil, err
		}
		return usage.NewRedisStore(client, usage.WithKeyPrefix(a.cfg.Redis.KeyPrefix)), nil
	case backendMongo:
		db, err := a.mongo(ctx)
		if err != nil {
			return nil, err
		}
		store := usage.NewMongoStore(db.Collection("usage_counters"))
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case backendPostgres:
		db, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return usage.NewPostgresStore(db), nil
	default:
		return usage.NewMemoryStore(), nil
	}
}

func (a *app) subscriptionStore(ctx context.Context) (subscription.Store, error) {
	switch a.cfg.SubscriptionBackend {
	case backendMongo:
		db, err := a.mongo(ctx)
		if err != nil {
			return nil, err
		}
		store := subscription.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case backendPostgres:
		db, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return subscription.NewPostgresStore(db), nil
	default:
		return subscription.NewMemoryStore(), nil
	}
}

// postgres connects once; both stores share the pool.
func (a *app) postgres(ctx context.Context) (*sql.DB, error) {
	if a.sqlDB != nil {
		return a.sqlDB, nil
	}

	pool, err := pg.Connect(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	db := pg.OpenDB(pool)
	a.closers = append(a.closers, pool.Close, func() { _ = db.Close() })
	a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	if a.cfg.AutoMigrate {
		if err := pg.Migrate(ctx, db, a.cfg.Postgres, a.log); err != nil {
			return nil, err
		}
	}

	a.sqlDB = db
	return db, nil
}

func (a *app) redis(ctx context.Context) (*goredis.Client, error) {
	if a.redisClient != nil {
		return a.redisClient, nil
	}

	client, err := redis.Connect(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})

	a.redisClient = client
	return client, nil
}

func (a *app) mongo(ctx context.Context) (*mongodriver.Database, error) {
	if a.mongoDB != nil {
		return a.mongoDB, nil
	}

	db, err := mongo.ConnectDatabase(ctx, a.cfg.Mongo)
	if err != nil {
		return nil, err
	}
	client := db.Client()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	})
	a.checks = append(a.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})

	a.mongoDB = db
	return db, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for _, c := range slices.Backward(a.closers) {
		c()
	}
	a.closers = nil
}

func (a *app) identity() quotahttp.Identity {
	header := quotahttp.NewHeaderIdentity(a.cfg.TenantHeader)
	if a.cfg.TenantDomain == "" {
		return header
	}
	return quotahttp.FirstOf(header, quotahttp.SubdomainIdentity{Suffix: a.cfg.TenantDomain})
}

// router serves the quota API under /v1 next to the health checks.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, a.cfg.ReadinessTimeout, a.checks...))
	if a.cfg.MetricsAddr == "" {
		r.Handle("/metrics", a.metricsHandler())
	}
	r.Mount("/v1", quotahttp.NewRouter(a.engine,
		quotahttp.WithIdentity(a.identity()),
		quotahttp.WithLogger(a.log.With(logger.Component("http"))),
	))
	return r
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
		Registry:      a.registry,
		ErrorLog:      slog.NewLogLogger(a.log.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

var errNoPostgres = errors.New("postgres is not configured, set PG_CONN_URL")

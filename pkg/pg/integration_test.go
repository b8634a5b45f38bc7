package pg_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/formloom/quota/pkg/pg"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

// startPostgres runs a throwaway container. Set QUOTA_PG_INTEGRATION=1 to enable.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("QUOTA_PG_INTEGRATION") == "" {
		t.Skip("QUOTA_PG_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("quota"),
		tcpostgres.WithUsername("quota"),
		tcpostgres.WithPassword("quota"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{ConnectionString: dsn, RetryAttempts: 3, RetryInterval: time.Second}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Healthcheck(pool)(ctx))

	db := pg.OpenDB(pool)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, pg.Migrate(ctx, db, cfg, slog.New(slog.DiscardHandler)))
	// Migrating twice is a no-op.
	require.NoError(t, pg.Migrate(ctx, db, cfg, nil))

	version, err := pg.Version(ctx, db, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	return db
}

func TestPostgres_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	t.Run("usage counters", func(t *testing.T) {
		store := usage.NewPostgresStore(db)
		key := usage.NewKey("tenant-pg", plan.ActionResponses, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Increment(ctx, key, 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(50), got)

		count, ok, err := store.IncrementIfBelow(ctx, key, 50, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(50), count)

		require.NoError(t, store.Reset(ctx, key))
		got, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("subscriptions", func(t *testing.T) {
		catalog := plan.MustCatalog(plan.DefaultPlans()...)
		resolver := subscription.NewResolver(subscription.NewPostgresStore(db), catalog)

		sub, err := resolver.Get(ctx, "tenant-pg")
		require.NoError(t, err)
		assert.Equal(t, "free", sub.PlanID)

		stale := *sub
		_, err = resolver.Cancel(ctx, "tenant-pg", false)
		require.NoError(t, err)

		stale.PlanID = "pro"
		err = subscription.NewPostgresStore(db).Save(ctx, &stale)
		assert.ErrorIs(t, err, subscription.ErrConflict)

		sub, err = resolver.Resubscribe(ctx, "tenant-pg", "pro")
		require.NoError(t, err)
		assert.Equal(t, "pro", sub.PlanID)
		assert.True(t, sub.IsActive())

		history, err := resolver.History(ctx, "tenant-pg")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].IsCancelled())
	})
}

package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect, table and filesystem in package globals.
var gooseMu sync.Mutex

// Migrate applies the embedded schema for usage counters and subscriptions.
func Migrate(ctx context.Context, db *sql.DB, cfg Config, log *slog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(cfg, log); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// Version returns the latest applied migration version.
func Version(ctx context.Context, db *sql.DB, cfg Config, log *slog.Logger) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(cfg, log); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}

func setupGoose(cfg Config, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	table := cfg.MigrationsTable
	if table == "" {
		table = "quota_schema_migrations"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	goose.SetTableName(table)
	return goose.SetDialect("postgres")
}

// gooseLogger routes goose output to slog. Fatalf is logged as an error instead of exiting.
type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

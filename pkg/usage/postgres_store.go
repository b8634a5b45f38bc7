package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/formloom/quota/pkg/plan"
)

const (
	incrementQuery = `INSERT INTO usage_counters (tenant_id, period, action, count, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, period, action)
DO UPDATE SET count = usage_counters.count + EXCLUDED.count, updated_at = EXCLUDED.updated_at
RETURNING count`

	incrementIfBelowQuery = `INSERT INTO usage_counters (tenant_id, period, action, count, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, period, action)
DO UPDATE SET count = usage_counters.count + EXCLUDED.count, updated_at = EXCLUDED.updated_at
WHERE usage_counters.count + EXCLUDED.count <= $6
RETURNING count`

	getQuery = `SELECT count FROM usage_counters
WHERE tenant_id = $1 AND period = $2 AND action = $3`

	getManyQuery = `SELECT action, count FROM usage_counters
WHERE tenant_id = $1 AND period = $2`

	resetQuery = `DELETE FROM usage_counters
WHERE tenant_id = $1 AND period = $2 AND action = $3`
)

// PostgresStore keeps counters in the usage_counters table created by the pg migrations.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ConditionalStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Increment(ctx context.Context, key Key, amount int64) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var count int64
	err := s.db.QueryRowContext(ctx, incrementQuery,
		key.TenantID, key.Period, string(key.Action), amount, s.now().UTC(),
	).Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return count, nil
}

// IncrementIfBelow relies on the conditional DO UPDATE: when the row is full
// no row is returned and the current value is read back.
func (s *PostgresStore) IncrementIfBelow(ctx context.Context, key Key, limit, amount int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}
	if amount > limit {
		current, err := s.Get(ctx, key)
		return current, false, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, incrementIfBelowQuery,
		key.TenantID, key.Period, string(key.Action), amount, s.now().UTC(), limit,
	).Scan(&count)
	switch {
	case err == nil:
		return count, true, nil
	case errors.Is(err, sql.ErrNoRows):
		current, err := s.Get(ctx, key)
		return current, false, err
	default:
		return 0, false, errors.Join(ErrStoreFailure, err)
	}
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, getQuery, key.TenantID, key.Period, string(key.Action)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return count, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error) {
	out := zeroSnapshot(actions)
	if len(actions) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, getManyQuery, tenantID, period)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			action string
			count  int64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		if _, wanted := out[plan.Action(action)]; wanted {
			out[plan.Action(action)] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return out, nil
}

func (s *PostgresStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, resetQuery, key.TenantID, key.Period, string(key.Action)); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

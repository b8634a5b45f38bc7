package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, tenant_id, plan_id, status, current_period_start, current_period_end,
cancel_at_period_end, provider_customer_id, provider_subscription_id, created_at, updated_at, cancelled_at, revision`

const (
	getSubscriptionQuery = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE tenant_id = $1`

	createSubscriptionQuery = `INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (tenant_id) DO NOTHING`

	saveSubscriptionQuery = `UPDATE subscriptions SET
plan_id = $3, status = $4, current_period_start = $5, current_period_end = $6,
cancel_at_period_end = $7, provider_customer_id = $8, provider_subscription_id = $9,
updated_at = $10, cancelled_at = $11, revision = revision + 1
WHERE tenant_id = $1 AND id = $2 AND revision = $12 AND status <> 'cancelled'`

	subscriptionIDQuery = `SELECT id FROM subscriptions WHERE tenant_id = $1`

	archiveSubscriptionQuery = `INSERT INTO subscription_history (` + subscriptionColumns + `, superseded_at)
SELECT ` + subscriptionColumns + `, $3 FROM subscriptions WHERE tenant_id = $1 AND id = $2
ON CONFLICT (id) DO NOTHING`

	replaceSubscriptionQuery = `UPDATE subscriptions SET
id = $3, plan_id = $4, status = $5, current_period_start = $6, current_period_end = $7,
cancel_at_period_end = $8, provider_customer_id = $9, provider_subscription_id = $10,
created_at = $11, updated_at = $12, cancelled_at = $13, revision = $14
WHERE tenant_id = $1 AND id = $2`

	historyQuery = `SELECT ` + subscriptionColumns + ` FROM subscription_history
WHERE tenant_id = $1 ORDER BY created_at`
)

// PostgresStore keeps subscriptions in the tables created by the pg migrations.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var (
		sub         Subscription
		id          string
		status      string
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&id, &sub.TenantID, &sub.PlanID, &status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.ProviderCustomerID, &sub.ProviderSubscriptionID,
		&sub.CreatedAt, &sub.UpdatedAt, &cancelledAt, &sub.Revision,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	sub.ID = parsed
	sub.Status = Status(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		sub.CancelledAt = &t
	}
	return &sub, nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (*Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, getSubscriptionQuery, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return sub, nil
}

// Create inserts with ON CONFLICT DO NOTHING and reads back whatever won.
func (s *PostgresStore) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	_, err := s.db.ExecContext(ctx, createSubscriptionQuery,
		sub.ID.String(), sub.TenantID, sub.PlanID, string(sub.Status),
		sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC(), sub.CancelAtPeriodEnd,
		sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(), sub.CancelledAt, sub.Revision,
	)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return s.Get(ctx, sub.TenantID)
}

func (s *PostgresStore) Save(ctx context.Context, sub *Subscription) error {
	res, err := s.db.ExecContext(ctx, saveSubscriptionQuery,
		sub.TenantID, sub.ID.String(), sub.PlanID, string(sub.Status),
		sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC(), sub.CancelAtPeriodEnd,
		sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.UpdatedAt.UTC(), sub.CancelledAt, sub.Revision,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if n == 0 {
		return s.saveMiss(ctx, sub)
	}
	return nil
}

// saveMiss tells a replaced or missing record apart from a stale revision.
func (s *PostgresStore) saveMiss(ctx context.Context, sub *Subscription) error {
	var id string
	err := s.db.QueryRowContext(ctx, subscriptionIDQuery, sub.TenantID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if id != sub.ID.String() {
		return ErrSubscriptionNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) Supersede(ctx context.Context, prev, next *Subscription) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, archiveSubscriptionQuery,
		prev.TenantID, prev.ID.String(), s.now().UTC(),
	); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}

	res, err := tx.ExecContext(ctx, replaceSubscriptionQuery,
		prev.TenantID, prev.ID.String(),
		next.ID.String(), next.PlanID, string(next.Status),
		next.CurrentPeriodStart.UTC(), next.CurrentPeriodEnd.UTC(), next.CancelAtPeriodEnd,
		next.ProviderCustomerID, next.ProviderSubscriptionID,
		next.CreatedAt.UTC(), next.UpdatedAt.UTC(), next.CancelledAt, next.Revision,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if n == 0 {
		err = ErrSubscriptionNotFound
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, tenantID string) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, historyQuery, tenantID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return out, nil
}

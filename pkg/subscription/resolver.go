package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/formloom/quota/pkg/plan"
)

// DefaultProvisionTimeout bounds the shared provisioning write of a first Get.
const DefaultProvisionTimeout = 10 * time.Second

// saveAttempts bounds how often a change is re-applied after a concurrent write.
const saveAttempts = 3

// Update is a partial change to a subscription. Nil fields are left untouched.
type Update struct {
	PlanID                 *string
	Status                 *Status
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      *bool
	ProviderCustomerID     *string
	ProviderSubscriptionID *string
}

// Resolver maps tenants to their current subscription, provisioning the catalog's
// default plan on first access.
type Resolver struct {
	store   Store
	catalog *plan.Catalog
	now     func() time.Time
	period  time.Duration
	logger  *slog.Logger

	provisionTimeout time.Duration
	provisioning     singleflight.Group
}

// NewResolver creates a resolver. Panics if store or catalog is nil.
func NewResolver(store Store, catalog *plan.Catalog, opts ...Option) *Resolver {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: Catalog is required")
	}

	r := &Resolver{
		store:   store,
		catalog: catalog,
		now:     time.Now,
		period:  DefaultPeriod,
		logger:  slog.New(slog.DiscardHandler),

		provisionTimeout: DefaultProvisionTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the tenant's subscription. A tenant without one is provisioned on the
// default plan with a period starting now. Concurrent first calls share one provisioning
// attempt in this process, and Store.Create converges racing processes on one record.
func (r *Resolver) Get(ctx context.Context, tenantID string) (*Subscription, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantID
	}

	sub, err := r.store.Get(ctx, tenantID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	// The flight is shared by every waiter, so one caller's cancellation must not fail
	// the others.
	v, err, _ := r.provisioning.Do(tenantID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.provisionTimeout)
		defer cancel()
		return r.provision(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Subscription).clone(), nil
}

// Peek returns the stored subscription without provisioning.
func (r *Resolver) Peek(ctx context.Context, tenantID string) (*Subscription, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantID
	}
	return r.store.Get(ctx, tenantID)
}

// History returns the tenant's superseded subscriptions.
func (r *Resolver) History(ctx context.Context, tenantID string) ([]*Subscription, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantID
	}
	return r.store.History(ctx, tenantID)
}

func (r *Resolver) provision(ctx context.Context, tenantID string) (*Subscription, error) {
	def := r.catalog.Default()
	sub, err := r.store.Create(ctx, newDefault(tenantID, def.ID, r.now(), r.period))
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "subscription provisioned",
		slog.String("tenant_id", tenantID),
		slog.String("plan_id", sub.PlanID),
	)
	return sub, nil
}

// Update applies a partial change. Status changes must follow the lifecycle table,
// and a cancelled record accepts no changes.
func (r *Resolver) Update(ctx context.Context, tenantID string, u Update) (*Subscription, error) {
	return r.modify(ctx, tenantID, func(sub *Subscription, now time.Time) (bool, error) {
		return true, r.apply(sub, u, now)
	})
}

// SetPlan moves the tenant to planID. Moving a past-due tenant to the default plan
// clears the payment obligation and reactivates the record.
func (r *Resolver) SetPlan(ctx context.Context, tenantID, planID string) (*Subscription, error) {
	return r.modify(ctx, tenantID, func(sub *Subscription, now time.Time) (bool, error) {
		u := Update{PlanID: &planID}
		if planID == r.catalog.Default().ID && sub.IsPastDue() {
			active := StatusActive
			noCancel := false
			u.Status = &active
			u.CancelAtPeriodEnd = &noCancel
		}
		return true, r.apply(sub, u, now)
	})
}

// Cancel ends the subscription. With atPeriodEnd the record stays active and only the
// flag is set; a period rollover job outside this package finalizes it.
// Cancelling an already cancelled record is a no-op.
func (r *Resolver) Cancel(ctx context.Context, tenantID string, atPeriodEnd bool) (*Subscription, error) {
	var changed bool
	sub, err := r.modify(ctx, tenantID, func(sub *Subscription, now time.Time) (bool, error) {
		changed = false
		if sub.IsCancelled() {
			return false, nil
		}
		if atPeriodEnd {
			sub.CancelAtPeriodEnd = true
		} else {
			to, err := NextStatus(ctx, sub.Status, EventCancel)
			if err != nil {
				return false, err
			}
			setStatus(sub, to, now)
			sub.CancelAtPeriodEnd = false
		}
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		r.logger.InfoContext(ctx, "subscription cancelled",
			slog.String("tenant_id", tenantID),
			slog.String("plan_id", sub.PlanID),
			slog.Bool("at_period_end", atPeriodEnd),
		)
	}
	return sub, nil
}

// Resubscribe replaces a cancelled record with a fresh active one on planID.
// The cancelled record is kept in history.
func (r *Resolver) Resubscribe(ctx context.Context, tenantID, planID string) (*Subscription, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantID
	}
	if !r.catalog.Has(planID) {
		return nil, errors.Join(ErrUnknownPlan, fmt.Errorf("plan %q", planID))
	}

	prev, err := r.store.Get(ctx, tenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return r.store.Create(ctx, newDefault(tenantID, planID, r.now(), r.period))
	}
	if err != nil {
		return nil, err
	}
	if !prev.IsCancelled() {
		return nil, ErrNotCancelled
	}

	next := newDefault(tenantID, planID, r.now(), r.period)
	if err := r.store.Supersede(ctx, prev, next); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "subscription renewed",
		slog.String("tenant_id", tenantID),
		slog.String("plan_id", planID),
	)
	return next, nil
}

func (r *Resolver) transition(sub *Subscription, to Status, now time.Time) error {
	if !CanTransition(sub.Status, to) {
		return errors.Join(ErrInvalidTransition, fmt.Errorf("%s -> %s", sub.Status, to))
	}
	setStatus(sub, to, now)
	return nil
}

func setStatus(sub *Subscription, to Status, now time.Time) {
	sub.Status = to
	if to == StatusCancelled {
		sub.CancelledAt = &now
	}
}

// modify reads the current record, lets fn change it, and saves it conditionally on
// the revision that was read. A concurrent write makes it re-read and run fn again.
// fn returning false leaves the record untouched.
func (r *Resolver) modify(
	ctx context.Context,
	tenantID string,
	fn func(sub *Subscription, now time.Time) (bool, error),
) (*Subscription, error) {
	var lastErr error
	for range saveAttempts {
		sub, err := r.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		now := r.now().UTC()
		changed, err := fn(sub, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sub, nil
		}

		sub.UpdatedAt = now
		err = r.store.Save(ctx, sub)
		if err == nil {
			sub.Revision++
			return sub, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err

		r.logger.DebugContext(ctx, "subscription changed concurrently, retrying",
			slog.String("tenant_id", tenantID),
		)
	}
	return nil, lastErr
}

func (r *Resolver) apply(sub *Subscription, u Update, now time.Time) error {
	if sub.IsCancelled() {
		return errors.Join(ErrInvalidSubscriptionState, errors.New("subscription is cancelled"))
	}

	if u.PlanID != nil {
		if !r.catalog.Has(*u.PlanID) {
			return errors.Join(ErrUnknownPlan, fmt.Errorf("plan %q", *u.PlanID))
		}
		sub.PlanID = *u.PlanID
	}
	if u.Status != nil && *u.Status != sub.Status {
		if err := r.transition(sub, *u.Status, now); err != nil {
			return err
		}
	}
	if u.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = u.CurrentPeriodStart.UTC()
	}
	if u.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = u.CurrentPeriodEnd.UTC()
	}
	if !sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart) {
		return errors.Join(ErrInvalidSubscriptionState, errors.New("period end must be after period start"))
	}
	if u.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *u.CancelAtPeriodEnd
	}
	if u.ProviderCustomerID != nil {
		sub.ProviderCustomerID = *u.ProviderCustomerID
	}
	if u.ProviderSubscriptionID != nil {
		sub.ProviderSubscriptionID = *u.ProviderSubscriptionID
	}
	return nil
}

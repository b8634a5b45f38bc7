package subscription

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPeriod is the billing period length given to lazily provisioned subscriptions.
const DefaultPeriod = 30 * 24 * time.Hour

// Subscription binds a tenant to a plan for a billing period.
// Each tenant has exactly one current record; records are status-transitioned, never deleted.
type Subscription struct {
	ID                     uuid.UUID
	TenantID               string
	PlanID                 string
	Status                 Status
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CancelAtPeriodEnd      bool
	ProviderCustomerID     string // empty for plans never paid through the provider
	ProviderSubscriptionID string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	CancelledAt            *time.Time
	Revision               int64 // bumped by every successful Store.Save
}

// IsActive reports whether the subscription is in good standing.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsPastDue reports whether a payment has failed.
func (s *Subscription) IsPastDue() bool {
	return s.Status == StatusPastDue
}

// IsCancelled reports whether the subscription has ended.
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// AllowsMeteredActions reports whether metered actions may be admitted at all.
// Past-due and cancelled subscriptions deny every metered action.
func (s *Subscription) AllowsMeteredActions() bool {
	return s.IsActive()
}

// PeriodContains reports whether t falls inside the current billing period.
func (s *Subscription) PeriodContains(t time.Time) bool {
	return !t.Before(s.CurrentPeriodStart) && t.Before(s.CurrentPeriodEnd)
}

// DaysRemainingAt returns whole days left in the period at now, rounding partial days up.
func (s *Subscription) DaysRemainingAt(now time.Time) int {
	remaining := s.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := remaining.Hours() / 24
	if days > float64(int(days)) {
		return int(days) + 1
	}
	return int(days)
}

func (s *Subscription) clone() *Subscription {
	c := *s
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// newDefault builds a fresh active record on planID with a period starting at now.
func newDefault(tenantID, planID string, now time.Time, period time.Duration) *Subscription {
	now = now.UTC()
	return &Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(period),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

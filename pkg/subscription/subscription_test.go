package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscription_StatusHelpers(t *testing.T) {
	t.Parallel()

	sub := &Subscription{Status: StatusActive}
	assert.True(t, sub.IsActive())
	assert.True(t, sub.AllowsMeteredActions())

	sub.Status = StatusPastDue
	assert.True(t, sub.IsPastDue())
	assert.False(t, sub.AllowsMeteredActions())

	sub.Status = StatusCancelled
	assert.True(t, sub.IsCancelled())
	assert.False(t, sub.AllowsMeteredActions())
}

func TestSubscription_Period(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := newDefault("t1", "free", start, DefaultPeriod)

	assert.Equal(t, start.Add(30*24*time.Hour), sub.CurrentPeriodEnd)
	assert.True(t, sub.PeriodContains(start))
	assert.True(t, sub.PeriodContains(start.Add(29*24*time.Hour)))
	assert.False(t, sub.PeriodContains(sub.CurrentPeriodEnd))
	assert.False(t, sub.PeriodContains(start.Add(-time.Second)))

	assert.Equal(t, 30, sub.DaysRemainingAt(start))
	assert.Equal(t, 1, sub.DaysRemainingAt(sub.CurrentPeriodEnd.Add(-time.Hour)))
	assert.Equal(t, 0, sub.DaysRemainingAt(sub.CurrentPeriodEnd.Add(time.Hour)))
}

func TestSubscription_CloneIsDeep(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{TenantID: "t1", CancelledAt: &at}

	c := sub.clone()
	*c.CancelledAt = at.Add(time.Hour)

	assert.Equal(t, at, *sub.CancelledAt)
}

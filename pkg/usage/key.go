package usage

import (
	"errors"
	"time"

	"github.com/formloom/quota/pkg/plan"
)

// PeriodLayout formats a billing-period start into a period key.
const PeriodLayout = "20060102T150405Z"

// Key identifies one logical counter: a tenant's usage of an action in a billing period.
type Key struct {
	TenantID string
	Action   plan.Action
	Period   string
}

// NewKey builds a key for the period starting at periodStart.
func NewKey(tenantID string, action plan.Action, periodStart time.Time) Key {
	return Key{TenantID: tenantID, Action: action, Period: PeriodFor(periodStart)}
}

// PeriodFor returns the period key for a billing period starting at start.
// A new period always yields a new key, so rollover never resets a counter in place.
func PeriodFor(start time.Time) string {
	return start.UTC().Format(PeriodLayout)
}

// String returns a stable identifier used by document and cache backends.
func (k Key) String() string {
	return k.TenantID + ":" + k.Period + ":" + string(k.Action)
}

// Validate reports whether the key is complete.
func (k Key) Validate() error {
	switch {
	case k.TenantID == "":
		return errors.Join(ErrInvalidKey, errors.New("tenant ID is empty"))
	case k.Period == "":
		return errors.Join(ErrInvalidKey, errors.New("period is empty"))
	case !k.Action.Valid():
		return errors.Join(ErrInvalidKey, plan.ErrUnknownAction)
	}
	return nil
}

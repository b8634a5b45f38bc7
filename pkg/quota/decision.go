package quota

import (
	"math"

	"github.com/formloom/quota/pkg/plan"
)

// Decision is the answer to "may this tenant perform this action".
// CurrentUsage is the usage before the requested amount.
type Decision struct {
	Allowed      bool   `json:"allowed"`
	CurrentUsage int64  `json:"currentUsage"`
	Limit        int64  `json:"limit"` // plan.Unlimited when Unlimited is set
	Unlimited    bool   `json:"isUnlimited"`
	PlanID       string `json:"planId,omitempty"`
	Reason       string `json:"reason,omitempty"`

	// Degraded is set when usage could not be read and the fallback admitted the action.
	Degraded bool `json:"degraded,omitempty"`

	err     error
	outcome string
}

// Err returns nil for allowed decisions and the matching sentinel otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.err != nil {
		return d.err
	}
	return ErrQuotaExceeded
}

// Remaining returns how much of the limit is left, or plan.Unlimited.
func (d Decision) Remaining() int64 {
	if d.Unlimited {
		return plan.Unlimited
	}
	return max(d.Limit-d.CurrentUsage, 0)
}

// Status is the read-only quota view of one action.
type Status struct {
	Action       plan.Action `json:"action"`
	CurrentUsage int64       `json:"currentUsage"`
	Limit        int64       `json:"limit"`
	Unlimited    bool        `json:"isUnlimited"`
	CanPerform   bool        `json:"canPerform"`
	PlanID       string      `json:"planId,omitempty"`
	Degraded     bool        `json:"degraded,omitempty"`

	// Percentage is not clamped: usage admitted under concurrent checks can exceed 100.
	Percentage int `json:"percentage"`
}

// DisplayPercentage clamps Percentage to 100 for progress bars.
func (s Status) DisplayPercentage() int {
	return min(s.Percentage, 100)
}

// Remaining returns how much of the limit is left, or plan.Unlimited.
func (s Status) Remaining() int64 {
	if s.Unlimited {
		return plan.Unlimited
	}
	return max(s.Limit-s.CurrentUsage, 0)
}

// percentage returns round(used/limit*100). A zero limit counts as fully used.
func percentage(used, limit int64) int {
	switch {
	case limit == plan.Unlimited:
		return 0
	case limit == 0:
		return 100
	case used <= 0:
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}

func fallbackStatus(a plan.Action, planID string) Status {
	return Status{
		Action:     a,
		Limit:      plan.Unlimited,
		Unlimited:  true,
		CanPerform: true,
		PlanID:     planID,
		Degraded:   true,
	}
}

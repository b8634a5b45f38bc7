package plan

import "maps"

// Unlimited marks an action with no limit (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Tier groups plans by price level.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// BillingInterval represents the billing frequency for a plan.
type BillingInterval string

const (
	BillingIntervalNone    BillingInterval = "none" // free plans with no billing
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"` // ISO 4217
}

// Plan is an immutable bundle of per-action limits.
// Position orders plans in the upgrade/downgrade hierarchy: higher is better.
type Plan struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Tier        Tier             `json:"tier"`
	Position    int              `json:"position"`
	Limits      map[Action]int64 `json:"limits"` // -1 represents unlimited
	Price       Money            `json:"price"`
	Interval    BillingInterval  `json:"interval"`
}

// Limit returns the configured limit for the action.
// Plans that passed catalog validation define every action; a missing entry
// yields 0 so an unconfigured action denies instead of allowing everything.
func (p Plan) Limit(a Action) int64 {
	limit, ok := p.Limits[a]
	if !ok {
		return 0
	}
	return limit
}

// IsUnlimited reports whether the action has no limit on this plan.
func (p Plan) IsUnlimited(a Action) bool {
	return p.Limit(a) == Unlimited
}

// Accommodates reports whether every usage in the snapshot fits within the plan's limits.
func (p Plan) Accommodates(snapshot map[Action]int64) bool {
	for a, used := range snapshot {
		limit := p.Limit(a)
		if limit == Unlimited {
			continue
		}
		if used > limit {
			return false
		}
	}
	return true
}

func (p Plan) clone() Plan {
	p.Limits = maps.Clone(p.Limits)
	return p
}

// PlanComparison contains the limit differences between two plans.
// Used to validate downgrades and communicate changes to users.
type PlanComparison struct {
	IncreasedLimits map[Action]LimitChange
	DecreasedLimits map[Action]LimitChange
}

// LimitChange represents a change in an action's limit.
type LimitChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// HasDecreases returns true if any action loses capacity.
func (c *PlanComparison) HasDecreases() bool {
	return len(c.DecreasedLimits) > 0
}

// ComparePlans returns the differences between current and target plans.
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	comparison := &PlanComparison{
		IncreasedLimits: make(map[Action]LimitChange),
		DecreasedLimits: make(map[Action]LimitChange),
	}

	for _, a := range actions {
		from, to := current.Limit(a), target.Limit(a)
		if from == to {
			continue
		}

		change := LimitChange{From: from, To: to}

		// Unlimited-to-limited is a decrease to prevent accidental loss of unlimited access
		switch {
		case from == Unlimited:
			comparison.DecreasedLimits[a] = change
		case to == Unlimited:
			comparison.IncreasedLimits[a] = change
		case to > from:
			comparison.IncreasedLimits[a] = change
		default:
			comparison.DecreasedLimits[a] = change
		}
	}

	return comparison
}

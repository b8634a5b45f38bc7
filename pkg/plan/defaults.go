package plan

// Plan IDs of the built-in catalog.
const (
	FreePlanID = "free"
	ProPlanID  = "pro"
)

// DefaultPlans returns the built-in free and pro plans.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:          FreePlanID,
			Name:        "Free",
			Description: "For trying things out",
			Tier:        TierFree,
			Position:    0,
			Interval:    BillingIntervalNone,
			Limits: map[Action]int64{
				ActionForms:         3,
				ActionResponses:     100,
				ActionStorage:       100,
				ActionAPICalls:      0,
				ActionAIGenerations: 10,
				ActionTeamMembers:   1,
			},
		},
		{
			ID:          ProPlanID,
			Name:        "Pro",
			Description: "For teams collecting responses at scale",
			Tier:        TierPro,
			Position:    1,
			Interval:    BillingIntervalMonthly,
			Price:       Money{Amount: 2900, Currency: "USD"},
			Limits: map[Action]int64{
				ActionForms:         Unlimited,
				ActionResponses:     10000,
				ActionStorage:       10240,
				ActionAPICalls:      10000,
				ActionAIGenerations: 500,
				ActionTeamMembers:   5,
			},
		},
	}
}

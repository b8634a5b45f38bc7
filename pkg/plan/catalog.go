package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Catalog is the read-only table of plans loaded at process start.
// It is safe for concurrent use because nothing mutates it after NewCatalog.
type Catalog struct {
	plans     map[string]Plan
	ordered   []Plan
	defaultID string
}

// NewCatalog validates the plans and builds a catalog.
// Every plan must define a limit for every Action; this completeness check
// is what lets the engine trust Plan.Limit at request time.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	c := &Catalog{
		plans:   make(map[string]Plan, len(plans)),
		ordered: make([]Plan, 0, len(plans)),
	}
	for _, p := range plans {
		p = p.clone()
		c.plans[p.ID] = p
		c.ordered = append(c.ordered, p)
	}

	slices.SortFunc(c.ordered, func(a, b Plan) int {
		return a.Position - b.Position
	})

	c.defaultID = c.ordered[0].ID
	for _, p := range c.ordered {
		if p.Tier == TierFree {
			c.defaultID = p.ID
			break
		}
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid configuration.
func MustCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans...)
	if err != nil {
		panic(fmt.Sprintf("plan: %v", err))
	}
	return c
}

// LoadCatalog loads plans from src and builds a validated catalog.
func LoadCatalog(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans...)
}

// Get returns a copy of the plan with the given ID.
func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p.clone(), nil
}

// Has reports whether the catalog contains the plan.
func (c *Catalog) Has(id string) bool {
	_, ok := c.plans[id]
	return ok
}

// Limit returns the plan's limit for the action.
func (c *Catalog) Limit(planID string, a Action) (int64, error) {
	if !a.Valid() {
		return 0, ErrUnknownAction
	}
	p, ok := c.plans[planID]
	if !ok {
		return 0, ErrPlanNotFound
	}
	return p.Limit(a), nil
}

// Default returns the plan new tenants are provisioned on:
// the free-tier plan, or the lowest-positioned plan if none is free.
func (c *Catalog) Default() Plan {
	return c.plans[c.defaultID].clone()
}

// Plans returns all plans ordered from lowest to highest position.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.ordered))
	for _, p := range c.ordered {
		out = append(out, p.clone())
	}
	return out
}

// IsUpgrade reports whether moving from one plan to the other goes up the hierarchy.
// Unknown plan IDs are never an upgrade.
func (c *Catalog) IsUpgrade(fromID, toID string) bool {
	from, okFrom := c.plans[fromID]
	to, okTo := c.plans[toID]
	if !okFrom || !okTo {
		return false
	}
	return to.Position > from.Position
}

// IsDowngrade reports whether moving from one plan to the other goes down the hierarchy.
func (c *Catalog) IsDowngrade(fromID, toID string) bool {
	from, okFrom := c.plans[fromID]
	to, okTo := c.plans[toID]
	if !okFrom || !okTo {
		return false
	}
	return to.Position < from.Position
}

// Recommend returns the lowest plan whose limits accommodate the usage snapshot,
// or the highest plan when nothing fits.
func (c *Catalog) Recommend(snapshot map[Action]int64) Plan {
	for _, p := range c.ordered {
		if p.Accommodates(snapshot) {
			return p.clone()
		}
	}
	return c.ordered[len(c.ordered)-1].clone()
}

// validatePlans ensures plan configurations are internally consistent.
// Catches configuration errors at startup instead of at request time.
func validatePlans(plans []Plan) error {
	ids := make(map[string]struct{}, len(plans))
	positions := make(map[int]string, len(plans))

	for _, p := range plans {
		if p.ID == "" {
			return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan ID is empty"))
		}
		if _, dup := ids[p.ID]; dup {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan ID %s", p.ID))
		}
		ids[p.ID] = struct{}{}

		if other, dup := positions[p.Position]; dup {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plans %s and %s share position %d", other, p.ID, p.Position))
		}
		positions[p.Position] = p.ID

		for _, a := range actions {
			limit, ok := p.Limits[a]
			if !ok {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has no limit for action %s", p.ID, a))
			}
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has invalid limit %d for action %s", p.ID, limit, a))
			}
		}

		for a := range p.Limits {
			if !a.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s references unknown action %q", p.ID, a))
			}
		}
	}

	return nil
}

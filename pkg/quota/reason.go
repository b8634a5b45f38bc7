package quota

import (
	"golang.org/x/text/message"

	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/subscription"
)

type reasons struct {
	p *message.Printer
}

// exceeded names the plan and the limit so callers can render an upgrade prompt.
func (r reasons) exceeded(p plan.Plan, a plan.Action, used, amount, limit int64) string {
	if used >= limit {
		return r.p.Sprintf("%s plan limit of %d %s reached", p.Name, limit, a.Noun())
	}
	return r.p.Sprintf("%s plan limit of %d %s would be exceeded (%d used, %d requested)",
		p.Name, limit, a.Noun(), used, amount)
}

func (r reasons) inactive(s subscription.Status) string {
	switch s {
	case subscription.StatusPastDue:
		return r.p.Sprintf("subscription is past due")
	case subscription.StatusCancelled:
		return r.p.Sprintf("subscription is cancelled")
	}
	return r.p.Sprintf("subscription is %s", s)
}

func (r reasons) unknownPlan(id string) string {
	return r.p.Sprintf("unknown plan %q", id)
}

func (r reasons) noSubscription() string {
	return r.p.Sprintf("no subscription")
}

func (r reasons) invalid(err error) string {
	return r.p.Sprintf("invalid request: %v", err)
}

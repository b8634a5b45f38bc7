package quota

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"github.com/formloom/quota/pkg/cache"
	"github.com/formloom/quota/pkg/logger"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

// Subscriptions resolves tenants to subscriptions. *subscription.Resolver implements it.
type Subscriptions interface {
	Get(ctx context.Context, tenantID string) (*subscription.Subscription, error)
	SetPlan(ctx context.Context, tenantID, planID string) (*subscription.Subscription, error)
	Resubscribe(ctx context.Context, tenantID, planID string) (*subscription.Subscription, error)
}

var errSubscriptionUnavailable = errors.New("subscription store unavailable")

const genShards = 64

type counterEntry struct {
	count    int64
	fallback bool
}

type snapshotKey struct {
	tenantID string
	period   string
}

type snapshotEntry struct {
	usage    map[plan.Action]int64
	fallback bool
}

// target is what a usage-dependent decision needs once the subscription is resolved.
type target struct {
	sub   *subscription.Subscription
	plan  plan.Plan
	key   usage.Key
	limit int64
}

// Engine decides whether tenants may perform metered actions and records the usage.
// It holds no locks across store calls; the read caches are internally synchronized.
type Engine struct {
	catalog *plan.Catalog
	subs    Subscriptions
	store   usage.Store

	counters  *cache.TTL[usage.Key, counterEntry]
	snapshots *cache.TTL[snapshotKey, snapshotEntry]
	fills     singleflight.Group
	gens      [genShards]atomic.Uint64

	timeout     time.Duration
	counterTTL  time.Duration
	snapshotTTL time.Duration
	capacity    int
	clock       cache.Clock
	lang        language.Tag
	reasons     reasons

	logger  *slog.Logger
	metrics *Metrics
	warn    *rate.Sometimes
}

// New creates an engine. Panics if any dependency is nil.
func New(catalog *plan.Catalog, subs Subscriptions, store usage.Store, opts ...Option) *Engine {
	if catalog == nil {
		panic("quota: Catalog is required")
	}
	if subs == nil {
		panic("quota: Subscriptions is required")
	}
	if store == nil {
		panic("quota: usage Store is required")
	}

	e := &Engine{
		catalog:     catalog,
		subs:        subs,
		store:       store,
		timeout:     DefaultStoreTimeout,
		counterTTL:  DefaultCounterTTL,
		snapshotTTL: DefaultSnapshotTTL,
		capacity:    DefaultCacheCapacity,
		clock:       time.Now,
		lang:        language.English,
		logger:      logger.Discard(),
		warn:        &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.counters = cache.NewTTL[usage.Key, counterEntry](e.capacity, e.counterTTL, cache.WithClock(e.clock))
	e.snapshots = cache.NewTTL[snapshotKey, snapshotEntry](e.capacity, e.snapshotTTL, cache.WithClock(e.clock))
	e.reasons = reasons{p: message.NewPrinter(e.lang)}
	return e
}

// Catalog returns the plan catalog the engine enforces.
func (e *Engine) Catalog() *plan.Catalog {
	return e.catalog
}

// CanPerform reports whether the tenant may perform amount units of action.
// Infrastructure failures never surface: the decision degrades to allowed.
// Unlimited actions are decided without reading usage.
func (e *Engine) CanPerform(ctx context.Context, tenantID string, a plan.Action, amount int64) Decision {
	d, t, settled := e.evaluate(ctx, tenantID, a, amount)
	if !settled {
		d = e.checkCounter(ctx, t, amount)
	}
	e.observe(ctx, tenantID, a, d)
	return d
}

// RecordUsage adds amount to the tenant's counter for the current period and drops
// the cached reads for it. Only invalid arguments are returned; store failures are
// logged and counted because the caller's action has already happened.
func (e *Engine) RecordUsage(ctx context.Context, tenantID string, a plan.Action, amount int64) error {
	if err := validate(tenantID, a, amount); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}

	// The action has already happened; a caller that gives up must not lose the count.
	sub, _, err := e.lookup(context.WithoutCancel(ctx), tenantID)
	if sub == nil {
		e.metrics.recordFailure(string(a))
		e.logger.ErrorContext(ctx, "usage not recorded: subscription unresolved",
			logger.TenantID(tenantID), logger.Action(string(a)), logger.Amount(amount), logger.Error(err))
		return nil
	}

	_, _ = e.increment(ctx, usage.NewKey(tenantID, a, sub.CurrentPeriodStart), amount)
	return nil
}

// Consume checks and records in one call. With a usage.ConditionalStore the check and
// the increment are one atomic store operation, so concurrent callers can never push
// usage past the limit. Other stores fall back to check-then-record.
func (e *Engine) Consume(ctx context.Context, tenantID string, a plan.Action, amount int64) Decision {
	d, t, settled := e.evaluate(ctx, tenantID, a, amount)
	if settled {
		if d.Allowed {
			e.recordAfter(ctx, tenantID, t, a, amount)
		}
		e.observe(ctx, tenantID, a, d)
		return d
	}

	cs, ok := e.store.(usage.ConditionalStore)
	if !ok {
		d = e.checkCounter(ctx, t, amount)
		if d.Allowed {
			e.recordAfter(ctx, tenantID, t, a, amount)
		}
		e.observe(ctx, tenantID, a, d)
		return d
	}

	d = e.consumeAtomic(ctx, cs, t, amount)
	e.observe(ctx, tenantID, a, d)
	return d
}

// CheckAndRecord runs fn only if the action is allowed and records usage after fn
// succeeds. A record failure never reverses fn. Usage admitted concurrently for the
// same tenant and action can overshoot the limit by up to (in-flight callers - 1) * amount.
func (e *Engine) CheckAndRecord(ctx context.Context, tenantID string, a plan.Action, amount int64, fn func(context.Context) error) (Decision, error) {
	d, t, settled := e.evaluate(ctx, tenantID, a, amount)
	if !settled {
		d = e.checkCounter(ctx, t, amount)
	}
	e.observe(ctx, tenantID, a, d)

	if !d.Allowed {
		return d, d.Err()
	}
	if err := fn(ctx); err != nil {
		return d, err
	}

	e.recordAfter(ctx, tenantID, t, a, amount)
	return d, nil
}

// GetQuotaStatus returns the read-only quota view of one action. Store failures yield
// the fallback view (zero usage, unlimited, allowed) instead of an error.
func (e *Engine) GetQuotaStatus(ctx context.Context, tenantID string, a plan.Action) (Status, error) {
	if err := validateAction(tenantID, a); err != nil {
		return Status{Action: a}, errors.Join(ErrInvalidRequest, err)
	}

	sub, p, err := e.lookup(ctx, tenantID)
	if err != nil {
		return e.statusError(ctx, tenantID, sub, a, err)
	}

	key := usage.NewKey(tenantID, a, sub.CurrentPeriodStart)
	used, ok := e.counter(ctx, key)
	if !ok {
		return fallbackStatus(a, p.ID), nil
	}
	return project(a, p, sub, used), nil
}

// GetQuotaStatuses returns views for several actions, all actions when none are given,
// with at most one usage store round trip.
func (e *Engine) GetQuotaStatuses(ctx context.Context, tenantID string, actions ...plan.Action) (map[plan.Action]Status, error) {
	if len(actions) == 0 {
		actions = plan.Actions()
	}
	for _, a := range actions {
		if err := validateAction(tenantID, a); err != nil {
			return nil, errors.Join(ErrInvalidRequest, err)
		}
	}

	out := make(map[plan.Action]Status, len(actions))

	sub, p, err := e.lookup(ctx, tenantID)
	if err != nil {
		for _, a := range actions {
			st, serr := e.statusError(ctx, tenantID, sub, a, err)
			if serr != nil {
				return nil, serr
			}
			out[a] = st
		}
		return out, nil
	}

	snap, ok := e.snapshot(ctx, tenantID, usage.PeriodFor(sub.CurrentPeriodStart))
	for _, a := range actions {
		if !ok {
			out[a] = fallbackStatus(a, p.ID)
			continue
		}
		out[a] = project(a, p, sub, snap[a])
	}
	return out, nil
}

// GetSubscription returns the tenant's subscription, provisioning it if needed.
func (e *Engine) GetSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	if tenantID == "" {
		return nil, errors.Join(ErrInvalidRequest, subscription.ErrMissingTenantID)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	sub, err := e.subs.Get(ctx, tenantID)
	e.metrics.observeStore("subscription_get", start)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, errors.Join(ErrNoSubscription, err)
	}
	return sub, err
}

// SetSubscriptionPlan moves the tenant to planID. Past-due and cancelled tenants may
// only move to the default plan; a cancelled tenant gets a fresh subscription.
func (e *Engine) SetSubscriptionPlan(ctx context.Context, tenantID, planID string) error {
	if !e.catalog.Has(planID) {
		return errors.Join(ErrUnknownPlan, fmt.Errorf("plan %q", planID))
	}

	sub, err := e.GetSubscription(ctx, tenantID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defaultID := e.catalog.Default().ID
	switch {
	case sub.AllowsMeteredActions():
		_, err = e.subs.SetPlan(ctx, tenantID, planID)
	case planID != defaultID:
		return errors.Join(ErrSubscriptionInactive,
			fmt.Errorf("%s subscription may only move to plan %q", sub.Status, defaultID))
	case sub.IsCancelled():
		_, err = e.subs.Resubscribe(ctx, tenantID, planID)
	default:
		_, err = e.subs.SetPlan(ctx, tenantID, planID)
	}
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "subscription plan changed",
		logger.TenantID(tenantID),
		slog.String("from_plan_id", sub.PlanID),
		logger.PlanID(planID),
	)
	return nil
}

// CanDowngrade reports whether the tenant's current usage fits the target plan.
// The error lists every action that would be over its new limit.
func (e *Engine) CanDowngrade(ctx context.Context, tenantID, targetPlanID string) error {
	targetPlan, err := e.catalog.Get(targetPlanID)
	if err != nil {
		return errors.Join(ErrUnknownPlan, err)
	}

	sub, current, err := e.lookup(ctx, tenantID)
	if err != nil {
		return lookupError(err)
	}

	cmp := plan.ComparePlans(&current, &targetPlan)
	if !cmp.HasDecreases() {
		return nil
	}

	snap, ok := e.snapshot(ctx, tenantID, usage.PeriodFor(sub.CurrentPeriodStart))
	if !ok {
		return ErrUsageUnavailable
	}

	violations := []error{}
	for _, a := range plan.Actions() {
		change, decreased := cmp.DecreasedLimits[a]
		if !decreased || change.To == plan.Unlimited || snap[a] <= change.To {
			continue
		}
		violations = append(violations, errors.New(e.reasons.p.Sprintf("%s: %d used, %s plan allows %d",
			a, snap[a], targetPlan.Name, change.To)))
	}
	if len(violations) > 0 {
		return errors.Join(append([]error{ErrDowngradeNotPossible}, violations...)...)
	}
	return nil
}

// RecommendPlan returns the lowest plan that fits the tenant's current usage.
func (e *Engine) RecommendPlan(ctx context.Context, tenantID string) (plan.Plan, error) {
	sub, _, err := e.lookup(ctx, tenantID)
	if sub == nil {
		return plan.Plan{}, lookupError(err)
	}

	snap, ok := e.snapshot(ctx, tenantID, usage.PeriodFor(sub.CurrentPeriodStart))
	if !ok {
		return plan.Plan{}, ErrUsageUnavailable
	}
	return e.catalog.Recommend(snap), nil
}

// ResetUsage deletes the tenant's counter for the current period. Administrative use only.
func (e *Engine) ResetUsage(ctx context.Context, tenantID string, a plan.Action) error {
	if err := validateAction(tenantID, a); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}

	// The action has already happened; a caller that gives up must not lose the count.
	sub, _, err := e.lookup(context.WithoutCancel(ctx), tenantID)
	if sub == nil {
		return lookupError(err)
	}
	key := usage.NewKey(tenantID, a, sub.CurrentPeriodStart)

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err = e.store.Reset(rctx, key)
	e.metrics.observeStore("usage_reset", start)
	e.invalidate(key)
	if err != nil {
		return errors.Join(ErrUsageUnavailable, err)
	}

	e.logger.InfoContext(ctx, "usage reset",
		logger.TenantID(tenantID), logger.Action(string(a)), logger.Period(key.Period))
	return nil
}

// evaluate settles everything that does not depend on the usage counter. When settled
// is false the caller must compare usage against t.limit. t is nil only when the
// subscription could not be resolved.
func (e *Engine) evaluate(ctx context.Context, tenantID string, a plan.Action, amount int64) (Decision, *target, bool) {
	if err := validate(tenantID, a, amount); err != nil {
		return Decision{Reason: e.reasons.invalid(err), err: ErrInvalidRequest, outcome: outcomeInvalid}, nil, true
	}

	sub, p, err := e.lookup(ctx, tenantID)
	switch {
	case errors.Is(err, ErrNoSubscription):
		e.logger.WarnContext(ctx, "quota check without subscription",
			logger.TenantID(tenantID), logger.Action(string(a)))
		return Decision{Reason: e.reasons.noSubscription(), err: ErrNoSubscription, outcome: outcomeNoSubscription}, nil, true

	case errors.Is(err, ErrUnknownPlan):
		e.logger.WarnContext(ctx, "subscription references unknown plan",
			logger.TenantID(tenantID), logger.PlanID(sub.PlanID))
		d := Decision{PlanID: sub.PlanID, Reason: e.reasons.unknownPlan(sub.PlanID), err: ErrUnknownPlan, outcome: outcomeUnknownPlan}
		return d, &target{sub: sub, key: usage.NewKey(tenantID, a, sub.CurrentPeriodStart)}, true

	case err != nil:
		e.metrics.fallback("subscription")
		e.warnFallback(ctx, "subscription lookup failed, admitting action",
			logger.TenantID(tenantID), logger.Action(string(a)), logger.Error(err))
		return fallbackDecision(""), nil, true
	}

	t := &target{
		sub:   sub,
		plan:  p,
		key:   usage.NewKey(tenantID, a, sub.CurrentPeriodStart),
		limit: p.Limit(a),
	}

	if !sub.AllowsMeteredActions() {
		return Decision{
			Limit:     t.limit,
			Unlimited: t.limit == plan.Unlimited,
			PlanID:    p.ID,
			Reason:    e.reasons.inactive(sub.Status),
			err:       ErrSubscriptionInactive,
			outcome:   outcomeInactive,
		}, t, true
	}

	if t.limit == plan.Unlimited {
		return Decision{Allowed: true, Limit: plan.Unlimited, Unlimited: true, PlanID: p.ID, outcome: outcomeUnlimited}, t, true
	}

	return Decision{}, t, false
}

func (e *Engine) checkCounter(ctx context.Context, t *target, amount int64) Decision {
	used, ok := e.counter(ctx, t.key)
	if !ok {
		return fallbackDecision(t.plan.ID)
	}
	return e.compare(t, used, amount)
}

// compare admits iff used + amount <= limit, written to avoid overflow.
func (e *Engine) compare(t *target, used, amount int64) Decision {
	if amount <= t.limit-used {
		return Decision{Allowed: true, CurrentUsage: used, Limit: t.limit, PlanID: t.plan.ID, outcome: outcomeAllowed}
	}
	return e.deny(t, used, amount)
}

func (e *Engine) deny(t *target, used, amount int64) Decision {
	d := Decision{CurrentUsage: used, Limit: t.limit, PlanID: t.plan.ID}
	d.Reason = e.reasons.exceeded(t.plan, t.key.Action, used, amount, t.limit)
	d.err = ErrQuotaExceeded
	d.outcome = outcomeExceeded
	return d
}

func (e *Engine) consumeAtomic(ctx context.Context, cs usage.ConditionalStore, t *target, amount int64) Decision {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	start := time.Now()
	count, ok, err := cs.IncrementIfBelow(sctx, t.key, t.limit, amount)
	e.metrics.observeStore("usage_increment_if_below", start)

	if err != nil {
		e.metrics.fallback("consume")
		e.metrics.recordFailure(string(t.key.Action))
		e.warnFallback(ctx, "conditional increment failed, admitting action unrecorded",
			logger.TenantID(t.key.TenantID), logger.Action(string(t.key.Action)), logger.Error(err))
		return fallbackDecision(t.plan.ID)
	}
	if !ok {
		return e.deny(t, count, amount)
	}

	e.invalidate(t.key)
	return e.compare(t, count-amount, amount)
}

// recordAfter records usage for an action that was admitted without a usage read.
func (e *Engine) recordAfter(ctx context.Context, tenantID string, t *target, a plan.Action, amount int64) {
	if t == nil {
		e.metrics.recordFailure(string(a))
		e.logger.ErrorContext(ctx, "usage not recorded: subscription unresolved",
			logger.TenantID(tenantID), logger.Action(string(a)), logger.Amount(amount))
		return
	}
	_, _ = e.increment(ctx, t.key, amount)
}

// increment is detached from ctx cancellation: the action it records has already happened.
func (e *Engine) increment(ctx context.Context, key usage.Key, amount int64) (int64, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	start := time.Now()
	n, err := e.store.Increment(sctx, key, amount)
	e.metrics.observeStore("usage_increment", start)
	e.invalidate(key)

	if err != nil {
		e.metrics.recordFailure(string(key.Action))
		e.logger.ErrorContext(ctx, "usage record failed",
			logger.TenantID(key.TenantID),
			logger.Action(string(key.Action)),
			logger.Period(key.Period),
			logger.Amount(amount),
			logger.Error(err),
		)
	}
	return n, err
}

// lookup resolves the subscription and its plan. Errors are ErrNoSubscription,
// ErrUnknownPlan (sub is still returned) or wrap errSubscriptionUnavailable.
func (e *Engine) lookup(ctx context.Context, tenantID string) (*subscription.Subscription, plan.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	sub, err := e.subs.Get(ctx, tenantID)
	e.metrics.observeStore("subscription_get", start)

	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return nil, plan.Plan{}, ErrNoSubscription
	case err != nil:
		return nil, plan.Plan{}, errors.Join(errSubscriptionUnavailable, err)
	}

	p, err := e.catalog.Get(sub.PlanID)
	if err != nil {
		return sub, plan.Plan{}, ErrUnknownPlan
	}
	return sub, p, nil
}

func lookupError(err error) error {
	if errors.Is(err, errSubscriptionUnavailable) {
		return errors.Join(ErrUsageUnavailable, err)
	}
	return err
}

func (e *Engine) statusError(ctx context.Context, tenantID string, sub *subscription.Subscription, a plan.Action, err error) (Status, error) {
	switch {
	case errors.Is(err, ErrNoSubscription):
		return Status{Action: a}, err
	case errors.Is(err, ErrUnknownPlan):
		return Status{Action: a, PlanID: sub.PlanID}, err
	}
	e.metrics.fallback("status")
	e.warnFallback(ctx, "subscription lookup failed, reporting fallback status",
		logger.TenantID(tenantID), logger.Error(err))
	return fallbackStatus(a, ""), nil
}

// counter reads one counter through the counter cache. ok is false when the value is
// the cached fallback.
func (e *Engine) counter(ctx context.Context, key usage.Key) (int64, bool) {
	if entry, hit := e.counters.Get(key); hit {
		e.metrics.cacheLookup("counter", true)
		return entry.count, !entry.fallback
	}
	e.metrics.cacheLookup("counter", false)

	flight := "c:" + key.String()
	v, _, _ := e.fills.Do(flight, func() (any, error) {
		gen := e.shard(flight).Load()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		start := time.Now()
		n, err := e.store.Get(sctx, key)
		e.metrics.observeStore("usage_get", start)

		entry := counterEntry{count: n}
		if err != nil {
			entry = counterEntry{fallback: true}
			e.metrics.fallback("counter")
			e.warnFallback(ctx, "usage read failed, assuming zero usage",
				logger.TenantID(key.TenantID), logger.Action(string(key.Action)),
				logger.Period(key.Period), logger.Error(err))
		}
		e.counters.PutIf(key, entry, func() bool { return e.shard(flight).Load() == gen })
		return entry, nil
	})

	entry := v.(counterEntry)
	return entry.count, !entry.fallback
}

// snapshot reads every action of one tenant and period through the snapshot cache.
func (e *Engine) snapshot(ctx context.Context, tenantID, period string) (map[plan.Action]int64, bool) {
	sk := snapshotKey{tenantID: tenantID, period: period}
	if entry, hit := e.snapshots.Get(sk); hit {
		e.metrics.cacheLookup("snapshot", true)
		return maps.Clone(entry.usage), !entry.fallback
	}
	e.metrics.cacheLookup("snapshot", false)

	flight := snapshotFlight(tenantID, period)
	v, _, _ := e.fills.Do(flight, func() (any, error) {
		gen := e.shard(flight).Load()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		start := time.Now()
		snap, err := e.store.GetMany(sctx, tenantID, period, plan.Actions())
		e.metrics.observeStore("usage_get_many", start)

		entry := snapshotEntry{usage: snap}
		if err != nil {
			entry = snapshotEntry{usage: map[plan.Action]int64{}, fallback: true}
			e.metrics.fallback("snapshot")
			e.warnFallback(ctx, "usage snapshot failed, assuming zero usage",
				logger.TenantID(tenantID), logger.Period(period), logger.Error(err))
		}
		e.snapshots.PutIf(sk, entry, func() bool { return e.shard(flight).Load() == gen })
		return entry, nil
	})

	entry := v.(snapshotEntry)
	return maps.Clone(entry.usage), !entry.fallback
}

// invalidate drops cached reads of key. The generation is bumped before the entries
// are dropped: a fill checks it under the cache lock, so it either sees the bump and
// skips caching, or inserts before the Invalidate below removes its entry.
func (e *Engine) invalidate(key usage.Key) {
	cf := "c:" + key.String()
	sf := snapshotFlight(key.TenantID, key.Period)

	e.shard(cf).Add(1)
	e.shard(sf).Add(1)

	e.counters.Invalidate(key)
	e.snapshots.Invalidate(snapshotKey{tenantID: key.TenantID, period: key.Period})

	e.fills.Forget(cf)
	e.fills.Forget(sf)
}

func (e *Engine) shard(flight string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(flight))
	return &e.gens[h.Sum32()%genShards]
}

func snapshotFlight(tenantID, period string) string {
	return "s:" + tenantID + ":" + period
}

func (e *Engine) observe(ctx context.Context, tenantID string, a plan.Action, d Decision) {
	e.metrics.decision(string(a), d.outcome)
	if !d.Allowed {
		e.logger.DebugContext(ctx, "quota denied",
			logger.TenantID(tenantID),
			logger.Action(string(a)),
			logger.PlanID(d.PlanID),
			slog.String("reason", d.Reason),
		)
	}
}

func (e *Engine) warnFallback(ctx context.Context, msg string, attrs ...slog.Attr) {
	e.warn.Do(func() {
		e.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
	})
}

func fallbackDecision(planID string) Decision {
	return Decision{
		Allowed:   true,
		Limit:     plan.Unlimited,
		Unlimited: true,
		PlanID:    planID,
		Degraded:  true,
		outcome:   outcomeFallback,
	}
}

func project(a plan.Action, p plan.Plan, sub *subscription.Subscription, used int64) Status {
	limit := p.Limit(a)
	st := Status{
		Action:       a,
		CurrentUsage: used,
		Limit:        limit,
		Unlimited:    limit == plan.Unlimited,
		PlanID:       p.ID,
		Percentage:   percentage(used, limit),
	}
	st.CanPerform = sub.AllowsMeteredActions() && (st.Unlimited || used < limit)
	return st
}

func validateAction(tenantID string, a plan.Action) error {
	if tenantID == "" {
		return subscription.ErrMissingTenantID
	}
	if !a.Valid() {
		return fmt.Errorf("%w: %q", plan.ErrUnknownAction, string(a))
	}
	return nil
}

func validate(tenantID string, a plan.Action, amount int64) error {
	if err := validateAction(tenantID, a); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", usage.ErrInvalidAmount, amount)
	}
	return nil
}

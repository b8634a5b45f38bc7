package quotahttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formloom/quota/pkg/logger"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/quota"
	"github.com/formloom/quota/pkg/subscription"
)

const maxBodyBytes = 1 << 16

type tenantKey struct{}

type handler struct {
	engine   *quota.Engine
	identity Identity
	logger   *slog.Logger
}

// Option configures the router.
type Option func(*handler)

// WithIdentity replaces the default X-Tenant-ID header identity.
func WithIdentity(id Identity) Option {
	return func(h *handler) {
		if id != nil {
			h.identity = id
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewRouter returns the quota JSON API. Panics if engine is nil.
func NewRouter(engine *quota.Engine, opts ...Option) chi.Router {
	if engine == nil {
		panic("quotahttp: engine is required")
	}

	h := &handler{
		engine:   engine,
		identity: NewHeaderIdentity(""),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(requestID, middleware.Recoverer)

	r.Get("/plans", h.listPlans)

	r.Group(func(r chi.Router) {
		r.Use(h.tenant)

		r.Get("/subscription", h.getSubscription)
		r.Put("/subscription/plan", h.setPlan)
		r.Get("/plans/recommended", h.recommendPlan)

		r.Get("/quota", h.listQuota)
		r.Get("/quota/{action}", h.getQuota)
		r.Post("/quota/{action}/check", h.check)
		r.Post("/quota/{action}/consume", h.consume)
	})

	return r
}

func (h *handler) tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := h.identity.Resolve(r)
		if err != nil {
			h.logger.WarnContext(r.Context(), "tenant identity failed", logger.Error(err))
		}
		if tenantID == "" {
			writeError(w, http.StatusUnauthorized, "missing_tenant", errMissingTenant.Error())
			return
		}

		ctx := logger.WithTenant(r.Context(), tenantID)
		ctx = context.WithValue(ctx, tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFrom(r *http.Request) string {
	id, _ := r.Context().Value(tenantKey{}).(string)
	return id
}

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.engine.Catalog().Plans())
}

func (h *handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.engine.GetSubscription(r.Context(), tenantFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newSubscriptionView(sub))
}

type setPlanRequest struct {
	PlanID string `json:"planId"`
}

// setPlan refuses downgrades the current usage does not fit.
func (h *handler) setPlan(w http.ResponseWriter, r *http.Request) {
	var req setPlanRequest
	if err := decodeBody(r, &req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "planId is required")
		return
	}

	ctx, tenantID := r.Context(), tenantFrom(r)

	sub, err := h.engine.GetSubscription(ctx, tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sub.AllowsMeteredActions() && h.engine.Catalog().IsDowngrade(sub.PlanID, req.PlanID) {
		if err := h.engine.CanDowngrade(ctx, tenantID, req.PlanID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	if err := h.engine.SetSubscriptionPlan(ctx, tenantID, req.PlanID); err != nil {
		h.fail(w, r, err)
		return
	}

	sub, err = h.engine.GetSubscription(ctx, tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newSubscriptionView(sub))
}

func (h *handler) recommendPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.RecommendPlan(r.Context(), tenantFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// listQuota returns every action, or the comma separated ?actions= subset.
func (h *handler) listQuota(w http.ResponseWriter, r *http.Request) {
	var actions []plan.Action
	if raw := r.URL.Query().Get("actions"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			a, err := plan.ParseAction(strings.TrimSpace(name))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error()+": "+name)
				return
			}
			actions = append(actions, a)
		}
	}

	statuses, err := h.engine.GetQuotaStatuses(r.Context(), tenantFrom(r), actions...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ordered := make([]quota.Status, 0, len(statuses))
	for _, a := range plan.Actions() {
		if st, ok := statuses[a]; ok {
			ordered = append(ordered, st)
		}
	}
	writeData(w, http.StatusOK, ordered)
}

func (h *handler) getQuota(w http.ResponseWriter, r *http.Request) {
	a, ok := h.action(w, r)
	if !ok {
		return
	}

	st, err := h.engine.GetQuotaStatus(r.Context(), tenantFrom(r), a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

type amountRequest struct {
	Amount *int64 `json:"amount"`
}

// check never changes usage. Denials are a normal 200 answer.
func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	a, amount, ok := h.actionAndAmount(w, r)
	if !ok {
		return
	}

	d := h.engine.CanPerform(r.Context(), tenantFrom(r), a, amount)
	if errors.Is(d.Err(), quota.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, "invalid_request", d.Reason)
		return
	}
	writeData(w, http.StatusOK, d)
}

// consume admits and records in one call. Denials are 402 with the decision as data.
func (h *handler) consume(w http.ResponseWriter, r *http.Request) {
	a, amount, ok := h.actionAndAmount(w, r)
	if !ok {
		return
	}

	d := h.engine.Consume(r.Context(), tenantFrom(r), a, amount)
	if d.Allowed {
		writeData(w, http.StatusOK, d)
		return
	}

	status, code := classify(d.Err())
	writeJSON(w, status, Envelope{
		Data:  d,
		Error: &ErrorDetail{Code: code, Message: d.Reason},
	})
}

func (h *handler) action(w http.ResponseWriter, r *http.Request) (plan.Action, bool) {
	name := chi.URLParam(r, "action")
	a, err := plan.ParseAction(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error()+": "+name)
		return "", false
	}
	return a, true
}

// actionAndAmount reads the action from the path and the amount from an optional
// JSON body. A missing body or amount means 1.
func (h *handler) actionAndAmount(w http.ResponseWriter, r *http.Request) (plan.Action, int64, bool) {
	a, ok := h.action(w, r)
	if !ok {
		return "", 0, false
	}

	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return "", 0, false
	}
	if req.Amount == nil {
		return a, 1, true
	}
	if *req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return "", 0, false
	}
	return a, *req.Amount, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "quota request failed",
			slog.String("path", r.URL.Path), logger.Error(err))
	}

	var details []string
	if errors.Is(err, quota.ErrDowngradeNotPossible) {
		details = unwrapJoined(err, quota.ErrDowngradeNotPossible)
	}
	writeError(w, status, code, http.StatusText(status), details...)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("malformed JSON body")
	}
	return nil
}

type subscriptionView struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenantId"`
	PlanID             string     `json:"planId"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
}

func newSubscriptionView(s *subscription.Subscription) subscriptionView {
	return subscriptionView{
		ID:                 s.ID.String(),
		TenantID:           s.TenantID,
		PlanID:             s.PlanID,
		Status:             string(s.Status),
		CurrentPeriodStart: s.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:   s.CurrentPeriodEnd.UTC(),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CancelledAt:        s.CancelledAt,
	}
}

package quotahttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/formloom/quota/pkg/quota"
)

// Envelope is the body of every response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

var errMissingTenant = errors.New("missing tenant identity")

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	writeJSON(w, status, Envelope{Error: &ErrorDetail{Code: code, Message: message, Details: details}})
}

// classify maps engine errors to a status code and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingTenant):
		return http.StatusUnauthorized, "missing_tenant"
	case errors.Is(err, quota.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, quota.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "quota_exceeded"
	case errors.Is(err, quota.ErrSubscriptionInactive):
		return http.StatusPaymentRequired, "subscription_inactive"
	case errors.Is(err, quota.ErrNoSubscription):
		return http.StatusNotFound, "no_subscription"
	case errors.Is(err, quota.ErrDowngradeNotPossible):
		return http.StatusConflict, "downgrade_not_possible"
	case errors.Is(err, quota.ErrUnknownPlan):
		return http.StatusUnprocessableEntity, "unknown_plan"
	case errors.Is(err, quota.ErrUsageUnavailable):
		return http.StatusServiceUnavailable, "usage_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// unwrapJoined flattens an errors.Join tree one level, skipping sentinel errors.
func unwrapJoined(err error, skip ...error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	var out []string
outer:
	for _, e := range joined.Unwrap() {
		for _, s := range skip {
			if e == s {
				continue outer
			}
		}
		out = append(out, e.Error())
	}
	return out
}

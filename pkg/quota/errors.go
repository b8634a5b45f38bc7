package quota

import "errors"

var (
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrNoSubscription       = errors.New("no subscription")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrInvalidRequest       = errors.New("invalid quota request")
	ErrDowngradeNotPossible = errors.New("downgrade not possible with current usage")
	ErrUsageUnavailable     = errors.New("usage unavailable")
)

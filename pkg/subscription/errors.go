package subscription

import "errors"

var (
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrInvalidTransition        = errors.New("invalid subscription status transition")
	ErrInvalidSubscriptionState = errors.New("invalid subscription state")
	ErrNotCancelled             = errors.New("subscription is not cancelled")
	ErrMissingTenantID          = errors.New("tenant ID is required")
	ErrUnknownPlan              = errors.New("subscription plan not found in catalog")
	ErrStoreFailure             = errors.New("subscription store failure")
	ErrConflict                 = errors.New("subscription was modified concurrently")
)

package plan

import "errors"

var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrUnknownAction            = errors.New("unknown metered action")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plans")
	ErrEmptyCatalog             = errors.New("plan catalog is empty")
)

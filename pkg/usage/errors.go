package usage

import "errors"

var (
	ErrInvalidKey    = errors.New("usage: invalid counter key")
	ErrInvalidAmount = errors.New("usage: amount must be positive")
	ErrStoreFailure  = errors.New("usage: counter store failure")
)

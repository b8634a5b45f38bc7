package subscription

import (
	"context"
	"errors"
	"slices"

	"github.com/formloom/quota/pkg/statemachine"
)

// Status is the lifecycle state of a subscription record.
type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPastDue, StatusCancelled:
		return true
	}
	return false
}

// Event is something that happens to a subscription and may change its status.
type Event string

const (
	EventPaymentFailed    Event = "payment_failed"
	EventPaymentRecovered Event = "payment_recovered"
	EventCancel           Event = "cancel"
)

// lifecycle lists every allowed status change.
// Cancelled is terminal: a new record is created on resubscribe.
var lifecycle = statemachine.MustNew(
	statemachine.WithTransition(StatusActive, StatusPastDue, EventPaymentFailed),
	statemachine.WithTransition(StatusPastDue, StatusActive, EventPaymentRecovered),
	statemachine.WithTransition(StatusActive, StatusCancelled, EventCancel),
	statemachine.WithTransition(StatusPastDue, StatusCancelled, EventCancel),
)

// CanTransition reports whether a subscription may move from one status to another.
func CanTransition(from, to Status) bool {
	return lifecycle.Reaches(from, to)
}

// NextStatus returns the status a subscription in from moves to when event occurs.
// It wraps ErrInvalidTransition when the event does not apply.
func NextStatus(ctx context.Context, from Status, event Event) (Status, error) {
	to, err := lifecycle.Next(ctx, from, event, nil)
	if err != nil {
		return from, errors.Join(ErrInvalidTransition, err)
	}
	return to, nil
}

// ValidTransitionsFrom returns the statuses reachable from the given one, sorted.
func ValidTransitionsFrom(from Status) []Status {
	targets := lifecycle.Targets(from)
	slices.Sort(targets)
	return targets
}

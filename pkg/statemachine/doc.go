// Package statemachine provides an immutable, typed transition table for records whose
// state lives in storage rather than in memory.
//
// A Machine holds no current state. Callers pass the state they loaded and the event
// that happened, and Next returns the resulting state, so one Machine can serve every
// record of a kind and is safe for concurrent use without locking.
//
// # Usage
//
//	const (
//	    Open   Status = "open"
//	    Closed Status = "closed"
//	    Close  Event  = "close"
//	)
//
//	lifecycle := statemachine.MustNew(
//	    statemachine.WithTransition(Open, Closed, Close),
//	)
//
//	next, err := lifecycle.Next(ctx, record.Status, Close, record)
//
// # Guards
//
// Guards veto a transition based on runtime data. All guards of a transition must
// pass; when several transitions share a source and event, the first whose guards
// pass wins, in registration order.
//
// # Errors
//
// Next wraps ErrNoTransition when the table has no entry for the state and event,
// and ErrTransitionRejected when entries exist but every guard set refused.
package statemachine

package statemachine

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Guard decides at fire time whether a transition may happen.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Transition moves a record from one state to another when Event occurs.
type Transition[S, E comparable] struct {
	From   S
	To     S
	Event  E
	Guards []Guard[S, E]
}

func (t Transition[S, E]) allowed(ctx context.Context, data any) bool {
	for _, g := range t.Guards {
		if !g(ctx, t.From, t.Event, data) {
			return false
		}
	}
	return true
}

// Machine is a transition table keyed by source state and event.
type Machine[S, E comparable] struct {
	transitions map[S]map[E][]Transition[S, E]
	order       []Transition[S, E]
}

// Option adds to a Machine under construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// New builds a Machine from opts.
func New[S, E comparable](opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew[S, E comparable](opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers a move from one state to another on event.
// Zero-valued states or events and repeated from/event/to triples are rejected.
func WithTransition[S, E comparable](from, to S, event E, guards ...Guard[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		var (
			zeroS S
			zeroE E
		)
		if from == zeroS || to == zeroS || event == zeroE {
			return fmt.Errorf("%w: %v -> %v on %v", ErrInvalidTransition, from, to, event)
		}

		byEvent, ok := m.transitions[from]
		if !ok {
			byEvent = make(map[E][]Transition[S, E])
			m.transitions[from] = byEvent
		}
		for _, t := range byEvent[event] {
			if t.To == to {
				return fmt.Errorf("%w: %v -> %v on %v", ErrDuplicateTransition, from, to, event)
			}
		}

		t := Transition[S, E]{From: from, To: to, Event: event, Guards: slices.Clone(guards)}
		byEvent[event] = append(byEvent[event], t)
		m.order = append(m.order, t)
		return nil
	}
}

// Next returns the state a record in from moves to when event occurs.
func (m *Machine[S, E]) Next(ctx context.Context, from S, event E, data any) (S, error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		var zero S
		return zero, fmt.Errorf("%w: %v on %v", ErrNoTransition, from, event)
	}
	for _, t := range candidates {
		if t.allowed(ctx, data) {
			return t.To, nil
		}
	}
	var zero S
	return zero, fmt.Errorf("%w: %v on %v", ErrTransitionRejected, from, event)
}

// CanFire reports whether Next would succeed.
func (m *Machine[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, err := m.Next(ctx, from, event, data)
	return err == nil
}

// Reaches reports whether some event leads directly from one state to the other,
// ignoring guards.
func (m *Machine[S, E]) Reaches(from, to S) bool {
	for _, ts := range m.transitions[from] {
		for _, t := range ts {
			if t.To == to {
				return true
			}
		}
	}
	return false
}

// Targets returns the distinct states reachable from one step away, in registration order.
func (m *Machine[S, E]) Targets(from S) []S {
	var out []S
	for _, t := range m.order {
		if t.From == from && !slices.Contains(out, t.To) {
			out = append(out, t.To)
		}
	}
	return out
}

// Events returns the distinct events defined for a state, in registration order.
func (m *Machine[S, E]) Events(from S) []E {
	var out []E
	for _, t := range m.order {
		if t.From == from && !slices.Contains(out, t.Event) {
			out = append(out, t.Event)
		}
	}
	return out
}

// IsTerminal reports whether no transition leaves the state.
func (m *Machine[S, E]) IsTerminal(s S) bool {
	return len(m.transitions[s]) == 0
}

// IsNoTransition reports whether err means the table has no entry for the pair.
func IsNoTransition(err error) bool {
	return errors.Is(err, ErrNoTransition)
}

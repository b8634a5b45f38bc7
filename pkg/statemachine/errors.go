package statemachine

import "errors"

var (
	ErrInvalidTransition   = errors.New("invalid transition definition")
	ErrDuplicateTransition = errors.New("duplicate transition")
	ErrNoTransition        = errors.New("no transition available")
	ErrTransitionRejected  = errors.New("transition rejected by guard")
)

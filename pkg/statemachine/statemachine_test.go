package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloom/quota/pkg/statemachine"
)

type state string

type event string

const (
	draft     state = "draft"
	review    state = "review"
	published state = "published"
	archived  state = "archived"

	submit  event = "submit"
	approve event = "approve"
	archive event = "archive"
)

func newDocumentMachine(t *testing.T, guards ...statemachine.Guard[state, event]) *statemachine.Machine[state, event] {
	t.Helper()
	m, err := statemachine.New(
		statemachine.WithTransition(draft, review, submit),
		statemachine.WithTransition(review, published, approve, guards...),
		statemachine.WithTransition(draft, archived, archive),
		statemachine.WithTransition(published, archived, archive),
	)
	require.NoError(t, err)
	return m
}

func TestMachine_Next(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newDocumentMachine(t)

	next, err := m.Next(ctx, draft, submit, nil)
	require.NoError(t, err)
	assert.Equal(t, review, next)

	next, err = m.Next(ctx, review, approve, nil)
	require.NoError(t, err)
	assert.Equal(t, published, next)

	_, err = m.Next(ctx, archived, submit, nil)
	assert.ErrorIs(t, err, statemachine.ErrNoTransition)
	assert.True(t, statemachine.IsNoTransition(err))
	assert.Contains(t, err.Error(), "archived on submit")
}

func TestMachine_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ownerOnly := func(_ context.Context, from state, evt event, data any) bool {
		assert.Equal(t, review, from)
		assert.Equal(t, approve, evt)
		role, _ := data.(string)
		return role == "owner"
	}
	m := newDocumentMachine(t, ownerOnly)

	_, err := m.Next(ctx, review, approve, "viewer")
	assert.ErrorIs(t, err, statemachine.ErrTransitionRejected)
	assert.False(t, statemachine.IsNoTransition(err))
	assert.False(t, m.CanFire(ctx, review, approve, "viewer"))

	next, err := m.Next(ctx, review, approve, "owner")
	require.NoError(t, err)
	assert.Equal(t, published, next)
	assert.True(t, m.CanFire(ctx, review, approve, "owner"))
}

func TestMachine_FirstAllowedTransitionWins(t *testing.T) {
	t.Parallel()

	never := func(context.Context, state, event, any) bool { return false }
	m := statemachine.MustNew(
		statemachine.WithTransition(review, published, approve, never),
		statemachine.WithTransition(review, archived, approve),
	)

	next, err := m.Next(context.Background(), review, approve, nil)
	require.NoError(t, err)
	assert.Equal(t, archived, next)
}

func TestMachine_Introspection(t *testing.T) {
	t.Parallel()
	m := newDocumentMachine(t)

	assert.True(t, m.Reaches(draft, review))
	assert.True(t, m.Reaches(draft, archived))
	assert.False(t, m.Reaches(review, draft))
	assert.False(t, m.Reaches(draft, draft))

	assert.Equal(t, []state{review, archived}, m.Targets(draft))
	assert.Empty(t, m.Targets(archived))
	assert.Equal(t, []event{submit, archive}, m.Events(draft))

	assert.True(t, m.IsTerminal(archived))
	assert.False(t, m.IsTerminal(published))
}

func TestNew_InvalidDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  statemachine.Option[state, event]
		want error
	}{
		{name: "empty from", opt: statemachine.WithTransition("", review, submit), want: statemachine.ErrInvalidTransition},
		{name: "empty to", opt: statemachine.WithTransition(draft, "", submit), want: statemachine.ErrInvalidTransition},
		{name: "empty event", opt: statemachine.WithTransition(draft, review, event("")), want: statemachine.ErrInvalidTransition},
		{name: "duplicate", opt: statemachine.WithTransition(draft, review, submit), want: statemachine.ErrDuplicateTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := statemachine.New(
				statemachine.WithTransition(draft, review, submit),
				tt.opt,
			)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.WithTransition[state, event]("", review, submit))
	})
}

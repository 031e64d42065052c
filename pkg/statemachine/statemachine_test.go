package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/receiptkit/pkg/statemachine"
)

type state string
type event string

const (
	draft     state = "draft"
	inReview  state = "in_review"
	approved  state = "approved"
	published state = "published"

	submit  event = "submit"
	approve event = "approve"
	publish event = "publish"
)

func newMachine(t *testing.T, opts ...statemachine.Option[state, event]) *statemachine.Machine[state, event] {
	t.Helper()
	base := []statemachine.Option[state, event]{
		statemachine.WithTerminal[state, event](published),
		statemachine.WithTransition[state, event](draft, inReview, submit),
		statemachine.WithTransition[state, event](inReview, approved, approve),
		statemachine.WithTransition[state, event](approved, published, publish),
	}
	m, err := statemachine.New(draft, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newMachine(t)

	assert.Equal(t, draft, m.Current())
	assert.True(t, m.CanFire(ctx, submit))
	assert.False(t, m.CanFire(ctx, approve))

	require.NoError(t, m.Fire(ctx, submit))
	require.NoError(t, m.Fire(ctx, approve))
	require.NoError(t, m.Fire(ctx, publish))

	assert.True(t, m.Is(published))
	assert.True(t, m.Terminated())

	err := m.Fire(ctx, submit)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	assert.Contains(t, err.Error(), "published")

	m.Reset()
	assert.Equal(t, draft, m.Current())
	assert.False(t, m.Terminated())
}

func TestMachine_Guards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	allowed := false
	m, err := statemachine.New(draft,
		statemachine.WithTransition[state, event](draft, approved, submit,
			statemachine.WithGuard[state, event](func(ctx context.Context, from state, e event) bool { return allowed }),
		),
		statemachine.WithTransition[state, event](draft, inReview, submit),
	)
	require.NoError(t, err)

	require.NoError(t, m.Fire(ctx, submit))
	assert.Equal(t, inReview, m.Current(), "falls through to the unguarded transition")

	m.Reset()
	allowed = true
	require.NoError(t, m.Fire(ctx, submit))
	assert.Equal(t, approved, m.Current(), "first passing transition wins")
}

func TestMachine_GuardRejects(t *testing.T) {
	t.Parallel()

	m := statemachine.MustNew(draft,
		statemachine.WithTransition[state, event](draft, inReview, submit,
			statemachine.WithGuard[state, event](func(context.Context, state, event) bool { return false }),
		),
	)

	err := m.Fire(context.Background(), submit)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.Equal(t, draft, m.Current())
}

func TestMachine_ActionAbortsTransition(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	m := statemachine.MustNew(draft,
		statemachine.WithTransition[state, event](draft, inReview, submit,
			statemachine.WithAction[state, event](func(context.Context, state, state, event) error { return boom }),
		),
	)

	err := m.Fire(context.Background(), submit)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, draft, m.Current())
}

func TestMachine_Hooks(t *testing.T) {
	t.Parallel()

	type step struct {
		from, to state
		ev       event
	}
	var steps []step
	m := newMachine(t, statemachine.WithHook[state, event](func(_ context.Context, from, to state, e event) {
		steps = append(steps, step{from, to, e})
	}))

	ctx := context.Background()
	require.NoError(t, m.Fire(ctx, submit))
	require.NoError(t, m.Fire(ctx, approve))
	_ = m.Fire(ctx, submit)

	assert.Equal(t, []step{
		{draft, inReview, submit},
		{inReview, approved, approve},
	}, steps)
}

func TestMachine_TerminalStateRejectsTransitions(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(draft,
		statemachine.WithTerminal[state, event](published),
		statemachine.WithTransition[state, event](published, draft, submit),
	)
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(draft,
		statemachine.WithTransition[state, event](published, draft, submit),
		statemachine.WithTerminal[state, event](published),
	)
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(draft,
			statemachine.WithTerminal[state, event](published),
			statemachine.WithTransition[state, event](published, draft, submit),
		)
	})
}

func TestMachine_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newMachine(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Fire(ctx, submit) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			_ = m.Current()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, inReview, m.Current())
}

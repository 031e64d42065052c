package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E comparable] func(ctx context.Context, from S, event E) bool

// Hook observes committed transitions. It runs after the state changed, outside the lock.
type Hook[S, E comparable] func(ctx context.Context, from, to S, event E)

type transition[S, E comparable] struct {
	to      S
	guards  []Guard[S, E]
	actions []Action[S, E]
}

// Machine is a thread-safe in-memory finite state machine over comparable state and event types.
// Transitions are looked up as [from][event] and tried in registration order; the first one whose
// guards all pass wins.
type Machine[S, E comparable] struct {
	mu          sync.RWMutex
	initial     S
	current     S
	transitions map[S]map[E][]transition[S, E]
	terminal    map[S]struct{}
	hooks       []Hook[S, E]
}

// New creates a machine in the initial state.
func New[S, E comparable](initial S, opts ...Option[S, E]) (*Machine[S, E], error) {
	m := &Machine[S, E]{
		initial:     initial,
		current:     initial,
		transitions: make(map[S]map[E][]transition[S, E]),
		terminal:    make(map[S]struct{}),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics if an option fails.
func MustNew[S, E comparable](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

func (m *Machine[S, E]) addTransition(from, to S, event E, guards []Guard[S, E], actions []Action[S, E]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.terminal[from]; ok {
		return fmt.Errorf("%w: %v is terminal", ErrInvalidTransition, from)
	}
	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[E][]transition[S, E])
	}
	m.transitions[from][event] = append(m.transitions[from][event], transition[S, E]{
		to:      to,
		guards:  guards,
		actions: actions,
	})
	return nil
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in state s.
func (m *Machine[S, E]) Is(s S) bool {
	return m.Current() == s
}

// Terminated reports whether the current state is terminal.
func (m *Machine[S, E]) Terminated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.terminal[m.current]
	return ok
}

// Fire applies event to the current state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	m.mu.Lock()

	from := m.current
	t, err := m.match(ctx, from, event)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	for _, action := range t.actions {
		if err := action(ctx, from, t.to, event); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.to
	hooks := m.hooks
	m.mu.Unlock()

	for _, h := range hooks {
		h(ctx, from, t.to, event)
	}
	return nil
}

// CanFire reports whether Fire would find a transition for event.
func (m *Machine[S, E]) CanFire(ctx context.Context, event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, m.current, event)
	return err == nil
}

// Reset returns to the initial state.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine[S, E]) match(ctx context.Context, from S, event E) (transition[S, E], error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return transition[S, E]{}, &ErrNoTransitionAvailable{
			StateName: fmt.Sprint(from),
			EventName: fmt.Sprint(event),
		}
	}

	for _, t := range candidates {
		passed := true
		for _, guard := range t.guards {
			if !guard(ctx, from, event) {
				passed = false
				break
			}
		}
		if passed {
			return t, nil
		}
	}

	return transition[S, E]{}, &ErrTransitionRejected{
		StateName: fmt.Sprint(from),
		EventName: fmt.Sprint(event),
	}
}

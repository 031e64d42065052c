package statemachine

import "fmt"

// Option configures a machine during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption[S, E comparable] func(*transition[S, E])

// WithTransition adds a transition from -> to on event.
func WithTransition[S, E comparable](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		t := &transition[S, E]{}
		for _, opt := range opts {
			opt(t)
		}
		if err := m.addTransition(from, to, event, t.guards, t.actions); err != nil {
			return fmt.Errorf("failed to add transition %v->%v on %v: %w", from, to, event, err)
		}
		return nil
	}
}

// WithTerminal marks states that accept no further events. It must precede the transitions.
func WithTerminal[S, E comparable](states ...S) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, s := range states {
			if len(m.transitions[s]) > 0 {
				return fmt.Errorf("%w: terminal state %v has outgoing transitions", ErrInvalidTransition, s)
			}
			m.terminal[s] = struct{}{}
		}
		return nil
	}
}

// WithHook registers a hook called after every committed transition.
func WithHook[S, E comparable](hook Hook[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard[S, E comparable](guard Guard[S, E]) TransitionOption[S, E] {
	return func(t *transition[S, E]) {
		if guard != nil {
			t.guards = append(t.guards, guard)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction[S, E comparable](action Action[S, E]) TransitionOption[S, E] {
	return func(t *transition[S, E]) {
		if action != nil {
			t.actions = append(t.actions, action)
		}
	}
}

// Package statemachine provides a small, generic finite state machine.
//
// States and events are any comparable types, typically string-based constants. Transitions
// are registered with functional options and may carry guards, which veto a transition, and
// actions, which run before the state changes and abort it on error. Hooks observe committed
// transitions, which is where callers usually log.
//
//	type State string
//	type Event string
//
//	m := statemachine.MustNew[State, Event]("idle",
//	    statemachine.WithTerminal[State, Event]("done"),
//	    statemachine.WithTransition[State, Event]("idle", "running", "start"),
//	    statemachine.WithTransition[State, Event]("running", "done", "finish"),
//	)
//
//	if err := m.Fire(ctx, "start"); err != nil {
//	    if statemachine.IsNoTransitionAvailableError(err) { /* ... */ }
//	}
//
// Machine is safe for concurrent use. Guards and actions run under the machine lock and must
// not call back into it; hooks run after the lock is released.
package statemachine

package displayreceipt

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/receiptkit/pkg/logger"
	"github.com/dmitrymomot/receiptkit/pkg/statemachine"
)

// State is a pipeline run state.
type State string

const (
	StateIdle         State = "idle"
	StateCheckOptOut  State = "check_opt_out"
	StateSendCurrent  State = "send_current"
	StateFlushBacklog State = "flush_backlog"
	StateDone         State = "done"
)

type event string

const (
	eventStart    event = "start"
	eventOptedOut event = "opted_out"
	eventSend     event = "send"
	eventSkip     event = "skip" // no receipt data on the notification
	eventSent     event = "sent"
	eventFinish   event = "finish"
)

func newRunMachine(log *slog.Logger) *statemachine.Machine[State, event] {
	return statemachine.MustNew(StateIdle,
		statemachine.WithTerminal[State, event](StateDone),
		statemachine.WithTransition[State, event](StateIdle, StateCheckOptOut, eventStart),
		statemachine.WithTransition[State, event](StateCheckOptOut, StateDone, eventOptedOut),
		statemachine.WithTransition[State, event](StateCheckOptOut, StateSendCurrent, eventSend),
		statemachine.WithTransition[State, event](StateCheckOptOut, StateFlushBacklog, eventSkip),
		statemachine.WithTransition[State, event](StateSendCurrent, StateFlushBacklog, eventSent),
		statemachine.WithTransition[State, event](StateFlushBacklog, StateDone, eventFinish),
		statemachine.WithHook[State, event](func(ctx context.Context, from, to State, ev event) {
			log.DebugContext(ctx, "pipeline state changed",
				slog.String("from", string(from)),
				logger.State(string(to)),
				slog.String("event", string(ev)),
			)
		}),
	)
}

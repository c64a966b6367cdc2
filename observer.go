package toolloop

import (
	"context"
	"log/slog"

	"github.com/spachava753/toolloop/log"
)

// EventKind names a point in the loop lifecycle.
type EventKind string

const (
	EventTurnAppended      EventKind = "turn-appended"
	EventCapabilityInvoked EventKind = "capability-invoked"
	EventCapabilityResult  EventKind = "capability-result"
	EventLoopTerminated    EventKind = "loop-terminated"
)

// Event describes something that happened while the loop ran. Which fields are
// set depends on Kind:
//   - EventTurnAppended: Turn
//   - EventCapabilityInvoked: Invocation
//   - EventCapabilityResult: Invocation and Result
//   - EventLoopTerminated: Conversation, plus Err when State is Failed
type Event struct {
	Kind      EventKind
	State     State
	Iteration int

	Turn         *Turn
	Invocation   *CapabilityInvocation
	Result       *CapabilityResult
	Conversation Conversation
	Err          error
}

// Observer receives loop events. Events of one loop run are delivered
// sequentially and in a deterministic order: capability-invoked events in
// invocation order before execution starts, capability-result events in
// invocation order once every invocation of the turn has finished.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}

// Observers fans an event out to every observer in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, e)
		}
	}
}

// LogObserver writes loop events to the logger carried by the context.
// Turn and result events are logged at Debug, termination at Info, or at
// Error when the loop failed.
type LogObserver struct{}

func (LogObserver) Observe(ctx context.Context, e Event) {
	switch e.Kind {
	case EventTurnAppended:
		log.Debug(ctx, string(e.Kind), "state", e.State.String(), "iteration", e.Iteration,
			"role", e.Turn.Role.String(), "invocations", len(e.Turn.Invocations))
	case EventCapabilityInvoked:
		log.Debug(ctx, string(e.Kind), "iteration", e.Iteration,
			"invocation_id", e.Invocation.ID, "capability", e.Invocation.Name)
	case EventCapabilityResult:
		level := slog.LevelDebug
		if e.Result.Failed() {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, string(e.Kind), "iteration", e.Iteration,
			"invocation_id", e.Result.InvocationID, "capability", e.Result.Capability,
			"failure_reason", e.Result.FailureReason)
	case EventLoopTerminated:
		if e.Err != nil {
			log.Error(ctx, string(e.Kind), e.Err, "state", e.State.String(), "iteration", e.Iteration,
				"turns", e.Conversation.Len())
			return
		}
		log.Info(ctx, string(e.Kind), "state", e.State.String(), "iteration", e.Iteration,
			"turns", e.Conversation.Len())
	}
}

var (
	_ Observer = ObserverFunc(nil)
	_ Observer = Observers(nil)
	_ Observer = LogObserver{}
)

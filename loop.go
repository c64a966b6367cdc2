package toolloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/toolloop/internal/telemetry"
)

// State is a state of the tool-call resolution loop.
type State uint8

const (
	// AwaitingModel means a converse call is pending or about to be made.
	AwaitingModel State = iota
	// ExecutingCapabilities means the invocations of the last Model turn are running.
	ExecutingCapabilities
	// Done is terminal: the last turn is a Model turn holding the final answer.
	Done
	// Failed is terminal: Loop.Run returned a *LoopErr.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingModel:
		return "AwaitingModel"
	case ExecutingCapabilities:
		return "ExecutingCapabilities"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// DefaultMaxIterations is the iteration bound used when Loop.MaxIterations is zero.
const DefaultMaxIterations = 10

// Loop drives a conversation between a caller and a model that may request
// capabilities before answering.
//
// Starting from a single Caller turn, the loop asks the Gateway for a reply.
// A FinalAnswer ends the loop in Done. CapabilityRequests move the loop to
// ExecutingCapabilities: every invocation is run through the Registry, possibly
// concurrently, and its result is appended in invocation order before the
// Gateway is asked again.
//
// Capability failures (invalid arguments, handler errors, panics, per-capability
// timeouts) are recorded as failed results and shown to the model. Gateway
// failures, unknown capabilities, cancellation and exceeding MaxIterations end
// the loop in Failed.
//
// A Loop holds no per-run state and may be used for concurrent runs.
type Loop struct {
	Gateway  Gateway
	Registry *Registry

	// MaxIterations bounds the number of transitions into ExecutingCapabilities.
	// Zero means DefaultMaxIterations. Exceeding it is always fatal.
	MaxIterations int

	// GatewayTimeout bounds each converse call. Zero means no per-call timeout.
	GatewayTimeout time.Duration

	// CapabilityTimeout bounds each capability execution. Zero means no timeout.
	CapabilityTimeout time.Duration

	// MaxConcurrency limits how many invocations of one model turn run at once.
	// Zero or negative means no limit; 1 runs them sequentially.
	MaxConcurrency int

	// Observer receives lifecycle events. It may be nil.
	Observer Observer
}

// Outcome is what a run of the loop produced. On failure it holds the
// conversation as it was when the loop stopped.
type Outcome struct {
	State        State
	Iterations   int
	Answer       string
	Conversation Conversation
	// Usage sums the token usage reported by every converse call.
	Usage Metrics
}

type run struct {
	loop      *Loop
	state     State
	iteration int
	conv      Conversation
	usage     Metrics
	seen      map[string]struct{}
}

// Run resolves query. It returns the final answer in Outcome.Answer, or a *LoopErr
// describing why the loop failed.
func (l *Loop) Run(ctx context.Context, query string) (Outcome, error) {
	if query == "" {
		return Outcome{State: Failed}, EmptyQueryErr
	}
	if l.Gateway == nil {
		return Outcome{State: Failed}, errors.New("loop has no gateway")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "toolloop.Run")
	r := &run{loop: l, state: AwaitingModel, seen: make(map[string]struct{})}
	out, err := r.resolve(ctx, query)
	span.SetAttributes(
		attribute.String("toolloop.state", out.State.String()),
		attribute.Int("toolloop.iterations", out.Iterations),
		attribute.Int("toolloop.turns", out.Conversation.Len()),
	)
	telemetry.End(span, err)
	return out, err
}

func (l *Loop) maxIterations() int {
	if l.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return l.MaxIterations
}

func (l *Loop) registry() *Registry {
	if l.Registry == nil {
		return &Registry{}
	}
	return l.Registry
}

func (r *run) resolve(ctx context.Context, query string) (Outcome, error) {
	reg := r.loop.registry()
	capabilities := reg.Capabilities()

	r.append(ctx, CallerTurn(query))

	for {
		if ctx.Err() != nil {
			return r.cancelled(ctx)
		}

		reply, err := r.loop.converse(ctx, r.conv, capabilities)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(ctx)
			}
			return r.fail(ctx, asGatewayErr(err), nil)
		}
		if err := checkReply("", reply); err != nil {
			return r.fail(ctx, err, nil)
		}
		r.usage = AddUsage(r.usage, reply.Usage())

		switch reply := reply.(type) {
		case FinalAnswer:
			r.append(ctx, reply.Turn())
			r.state = Done
			r.observe(ctx, Event{Kind: EventLoopTerminated, Conversation: r.conv})
			return r.outcome(reply.Text), nil

		case CapabilityRequests:
			for _, inv := range reply.Invocations {
				if _, dup := r.seen[inv.ID]; dup {
					return r.fail(ctx, MalformedResponseErr("", "invocation id %s reused within the conversation", inv.ID), &inv)
				}
			}
			r.append(ctx, reply.Turn())
			for _, inv := range reply.Invocations {
				r.seen[inv.ID] = struct{}{}
			}

			if r.iteration >= r.loop.maxIterations() {
				return r.fail(ctx, IterationBoundExceededErr{Bound: r.loop.maxIterations()}, nil)
			}
			r.iteration++
			r.state = ExecutingCapabilities

			for _, inv := range reply.Invocations {
				if _, err := reg.Resolve(inv.Name); err != nil {
					return r.fail(ctx, err, &inv)
				}
			}

			results, err := r.execute(ctx, reg, reply.Invocations)
			if err != nil {
				return r.fail(ctx, err, nil)
			}
			if ctx.Err() != nil {
				return r.cancelled(ctx)
			}
			for i, res := range results {
				r.observe(ctx, Event{Kind: EventCapabilityResult, Invocation: &reply.Invocations[i], Result: &res})
				r.append(ctx, ResultTurn(res))
			}
			r.state = AwaitingModel

		}
	}
}

// execute runs every invocation and returns the results in invocation order.
func (r *run) execute(ctx context.Context, reg *Registry, invocations []CapabilityInvocation) ([]CapabilityResult, error) {
	results := make([]CapabilityResult, len(invocations))
	g, gctx := errgroup.WithContext(ctx)
	if r.loop.MaxConcurrency > 0 {
		g.SetLimit(r.loop.MaxConcurrency)
	}
	for i, inv := range invocations {
		r.observe(ctx, Event{Kind: EventCapabilityInvoked, Invocation: &inv})
		g.Go(func() error {
			res, err := r.loop.executeOne(gctx, reg, inv)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loop) executeOne(ctx context.Context, reg *Registry, inv CapabilityInvocation) (CapabilityResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "toolloop.execute "+inv.Name, trace.WithAttributes(
		attribute.String("toolloop.capability", inv.Name),
		attribute.String("toolloop.invocation_id", inv.ID),
	))
	if l.CapabilityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.CapabilityTimeout)
		defer cancel()
	}
	res, err := reg.Execute(ctx, inv)
	if err == nil && res.Failed() {
		span.SetAttributes(attribute.String("toolloop.failure_reason", res.FailureReason))
	}
	telemetry.End(span, err)
	return res, err
}

func (l *Loop) converse(ctx context.Context, conv Conversation, capabilities []Capability) (Reply, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "toolloop.converse", trace.WithAttributes(
		attribute.Int("toolloop.turns", conv.Len()),
	))
	if l.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.GatewayTimeout)
		defer cancel()
	}
	reply, err := l.Gateway.Converse(ctx, conv, capabilities)
	if err == nil && reply == nil {
		err = MalformedResponseErr("", "gateway returned no reply")
	}
	telemetry.End(span, err)
	return reply, err
}

// asGatewayErr makes sure every converse failure reaches the caller as a GatewayErr.
func asGatewayErr(err error) error {
	var gerr GatewayErr
	if errors.As(err, &gerr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return GatewayErr{Kind: GatewayTimeout, Err: err}
	}
	return GatewayErr{Kind: GatewayProviderError, Err: err}
}

func (r *run) append(ctx context.Context, t Turn) {
	r.conv = r.conv.Append(t)
	r.observe(ctx, Event{Kind: EventTurnAppended, Turn: &t})
}

func (r *run) observe(ctx context.Context, e Event) {
	if r.loop.Observer == nil {
		return
	}
	e.State = r.state
	e.Iteration = r.iteration
	r.loop.Observer.Observe(ctx, e)
}

func (r *run) outcome(answer string) Outcome {
	return Outcome{
		State:        r.state,
		Iterations:   r.iteration,
		Answer:       answer,
		Conversation: r.conv,
		Usage:        r.usage,
	}
}

func (r *run) cancelled(ctx context.Context) (Outcome, error) {
	return r.fail(ctx, fmt.Errorf("%w: %w", CancelledErr, context.Cause(ctx)), nil)
}

func (r *run) fail(ctx context.Context, err error, inv *CapabilityInvocation) (Outcome, error) {
	lerr := &LoopErr{State: r.state, Iteration: r.iteration, Err: err}
	if inv != nil {
		lerr.InvocationID = inv.ID
		lerr.Capability = inv.Name
	}
	r.state = Failed
	r.observe(ctx, Event{Kind: EventLoopTerminated, Conversation: r.conv, Err: lerr})
	return r.outcome(""), lerr
}

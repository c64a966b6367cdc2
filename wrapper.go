package toolloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/spachava753/toolloop/log"
)

// GatewayWrapper is a base type for gateway middleware. Embed it and override
// only the methods you need to intercept; the rest delegate to Inner.
//
// Example:
//
//	type TimingGateway struct {
//	    toolloop.GatewayWrapper
//	}
//
//	func (t *TimingGateway) Converse(ctx context.Context, c toolloop.Conversation, caps []toolloop.Capability) (toolloop.Reply, error) {
//	    start := time.Now()
//	    defer func() { fmt.Println("converse took", time.Since(start)) }()
//	    return t.GatewayWrapper.Converse(ctx, c, caps)
//	}
type GatewayWrapper struct {
	Inner Gateway
}

func (w *GatewayWrapper) Converse(ctx context.Context, conversation Conversation, capabilities []Capability) (Reply, error) {
	return w.Inner.Converse(ctx, conversation, capabilities)
}

// Count delegates to Inner if it implements TokenCounter.
func (w *GatewayWrapper) Count(ctx context.Context, conversation Conversation) (uint, error) {
	if tc, ok := w.Inner.(TokenCounter); ok {
		return tc.Count(ctx, conversation)
	}
	return 0, fmt.Errorf("inner gateway of type %T does not implement TokenCounter", w.Inner)
}

var (
	_ Gateway      = (*GatewayWrapper)(nil)
	_ TokenCounter = (*GatewayWrapper)(nil)
)

// WrapperFunc wraps a Gateway with another Gateway.
type WrapperFunc func(Gateway) Gateway

// Wrap applies wrappers to gateway. The first wrapper is the outermost, so
//
//	Wrap(g, WithLogging(), WithRetry(nil))
//
// logs every converse call once, around all retry attempts.
func Wrap(gateway Gateway, wrappers ...WrapperFunc) Gateway {
	for i := len(wrappers) - 1; i >= 0; i-- {
		gateway = wrappers[i](gateway)
	}
	return gateway
}

// WithRetry wraps a gateway in a RetryGateway.
func WithRetry(baseBo backoff.BackOff, opts ...backoff.RetryOption) WrapperFunc {
	return func(g Gateway) Gateway {
		return NewRetryGateway(g, baseBo, opts...)
	}
}

// LoggingGateway logs every converse call with its duration and reply shape.
type LoggingGateway struct {
	GatewayWrapper
}

func (l *LoggingGateway) Converse(ctx context.Context, conversation Conversation, capabilities []Capability) (Reply, error) {
	start := time.Now()
	reply, err := l.GatewayWrapper.Converse(ctx, conversation, capabilities)
	elapsed := time.Since(start)
	if err != nil {
		log.Error(ctx, "converse failed", err, "turns", conversation.Len(), "elapsed", elapsed)
		return reply, err
	}
	args := []any{"turns", conversation.Len(), "elapsed", elapsed}
	if in, ok := InputTokens(reply.Usage()); ok {
		args = append(args, "input_tokens", in)
	}
	if out, ok := OutputTokens(reply.Usage()); ok {
		args = append(args, "gen_tokens", out)
	}
	switch r := reply.(type) {
	case CapabilityRequests:
		args = append(args, "invocations", len(r.Invocations))
	case FinalAnswer:
		args = append(args, "final", true)
	}
	log.Debug(ctx, "converse", args...)
	return reply, nil
}

// WithLogging wraps a gateway in a LoggingGateway.
func WithLogging() WrapperFunc {
	return func(g Gateway) Gateway {
		return &LoggingGateway{GatewayWrapper: GatewayWrapper{Inner: g}}
	}
}

package toolloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// Default parameters for the ExponentialBackOff if no base policy is provided by the user.
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 15 * time.Second
	// Default MaxElapsedTime if the user provides no specific RetryOptions that override it.
	defaultRetryMaxElapsedTime = 1 * time.Minute
)

// RetryGateway is a Gateway that wraps another Gateway and retries the Converse
// call according to a base backoff policy and retry options.
//
// It retries on:
//   - context.DeadlineExceeded from the Converse call itself, not the overall context
//   - GatewayErr of kind GatewayTimeout
//   - GatewayErr of kind GatewayProviderError with HTTP status 429 or 5xx
//
// Malformed responses and every other error are returned immediately.
type RetryGateway struct {
	gateway      Gateway
	baseBackOff  backoff.BackOff       // The core backoff strategy (e.g., *ExponentialBackOff).
	retryOptions []backoff.RetryOption // User-provided options for the backoff.Retry call (e.g., MaxElapsedTime, Notify).
}

// NewRetryGateway creates a new RetryGateway.
//
// Parameters:
//   - gateway: The underlying Gateway to wrap.
//   - baseBo: The base backoff.BackOff policy to use. If nil, a default
//     *ExponentialBackOff (Initial: 500ms, Max: 15s) is created.
//   - opts: Optional backoff.RetryOption(s) applied to each Retry call. If none are
//     provided, a default MaxElapsedTime of one minute is applied. Do not pass
//     backoff.WithBackOff here; baseBo is always used as the backoff strategy.
func NewRetryGateway(gateway Gateway, baseBo backoff.BackOff, opts ...backoff.RetryOption) *RetryGateway {
	actualBaseBo := baseBo
	if actualBaseBo == nil {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = defaultRetryInitialInterval
		exp.MaxInterval = defaultRetryMaxInterval
		actualBaseBo = exp
	}

	finalOpts := opts
	if len(opts) == 0 {
		finalOpts = []backoff.RetryOption{
			backoff.WithMaxElapsedTime(defaultRetryMaxElapsedTime),
		}
	}

	return &RetryGateway{
		gateway:      gateway,
		baseBackOff:  actualBaseBo,
		retryOptions: finalOpts,
	}
}

// Converse calls the underlying Gateway, retrying on temporary errors. If ctx is
// cancelled, retries stop.
func (rg *RetryGateway) Converse(ctx context.Context, conversation Conversation, capabilities []Capability) (Reply, error) {
	operation := func() (Reply, error) {
		if err := ctx.Err(); err != nil {
			return nil, backoff.Permanent(err)
		}

		reply, err := rg.gateway.Converse(ctx, conversation, capabilities)
		if err != nil {
			if retriable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return reply, nil
	}

	// Reset the state of the base backoff policy (e.g., for ExponentialBackOff).
	rg.baseBackOff.Reset()

	callOpts := make([]backoff.RetryOption, 0, 1+len(rg.retryOptions))
	callOpts = append(callOpts, backoff.WithBackOff(rg.baseBackOff))
	callOpts = append(callOpts, rg.retryOptions...)

	reply, err := backoff.Retry(ctx, operation, callOpts...)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}
	return reply, nil
}

func retriable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr GatewayErr
	if errors.As(err, &gerr) {
		return gerr.Temporary()
	}
	return false
}

// Count implements TokenCounter if the underlying gateway also implements it.
// Retries are not applied to Count.
func (rg *RetryGateway) Count(ctx context.Context, conversation Conversation) (uint, error) {
	if tc, ok := rg.gateway.(TokenCounter); ok {
		return tc.Count(ctx, conversation)
	}
	return 0, fmt.Errorf("underlying gateway of type %T does not implement TokenCounter", rg.gateway)
}

var (
	_ Gateway      = (*RetryGateway)(nil)
	_ TokenCounter = (*RetryGateway)(nil)
)

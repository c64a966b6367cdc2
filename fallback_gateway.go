package toolloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FallbackConfig controls when a FallbackGateway moves on to the next gateway.
type FallbackConfig struct {
	// ShouldFallback reports whether err warrants trying the next gateway.
	// If nil, rate limiting, 5xx provider errors and timeouts fall back.
	ShouldFallback func(err error) bool
}

// FallbackGateway tries its gateways in order until one succeeds or returns an
// error that ShouldFallback rejects. It lets a conversation survive one
// provider being down by continuing on another, e.g. OpenAI then Groq.
type FallbackGateway struct {
	gateways []Gateway
	config   FallbackConfig
}

// NewFallbackGateway requires at least two gateways. config may be nil.
func NewFallbackGateway(gateways []Gateway, config *FallbackConfig) (*FallbackGateway, error) {
	if len(gateways) < 2 {
		return nil, errors.New("fallback gateway requires at least 2 gateways")
	}

	actualConfig := FallbackConfig{}
	if config != nil {
		actualConfig = *config
	}
	if actualConfig.ShouldFallback == nil {
		actualConfig.ShouldFallback = defaultShouldFallback
	}

	return &FallbackGateway{
		gateways: gateways,
		config:   actualConfig,
	}, nil
}

func defaultShouldFallback(err error) bool {
	var gerr GatewayErr
	if errors.As(err, &gerr) && gerr.Temporary() {
		return true
	}
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return true
	}
	return false
}

func (f *FallbackGateway) Converse(ctx context.Context, conversation Conversation, capabilities []Capability) (Reply, error) {
	var lastErr error

	for _, gateway := range f.gateways {
		reply, err := gateway.Converse(ctx, conversation, capabilities)
		if err == nil {
			return reply, nil
		}

		lastErr = err
		if ctx.Err() != nil || !f.config.ShouldFallback(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all gateways failed: %w", lastErr)
}

// NewHTTPStatusFallbackConfig falls back only on provider errors with one of statusCodes.
func NewHTTPStatusFallbackConfig(statusCodes ...int) FallbackConfig {
	return FallbackConfig{
		ShouldFallback: func(err error) bool {
			var gerr GatewayErr
			if errors.As(err, &gerr) && gerr.Kind == GatewayProviderError {
				for _, code := range statusCodes {
					if gerr.StatusCode == code {
						return true
					}
				}
			}
			return false
		},
	}
}

var _ Gateway = (*FallbackGateway)(nil)

package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/credentials"
	"github.com/spachava753/toolloop/gateways/anthropic"
	"github.com/spachava753/toolloop/gateways/gemini"
	"github.com/spachava753/toolloop/gateways/openai"
)

const temperature = 0.2

// defaultModels holds the model used when -model is not given.
var defaultModels = map[string]string{
	openai.OpenAI.Name:    "gpt-4o-mini",
	openai.Groq.Name:      "llama-3.3-70b-versatile",
	openai.XAI.Name:       "grok-3-mini",
	openai.Fireworks.Name: "accounts/fireworks/models/llama-v3p1-70b-instruct",
	"gemini":              "gemini-2.5-flash",
	"vertex":              "gemini-2.5-flash",
	"anthropic":           "claude-3-5-haiku-latest",
}

func providerNames() []string {
	return slices.Sorted(maps.Keys(defaultModels))
}

// gatewayOptions are the per run settings shared by every provider.
type gatewayOptions struct {
	system string
	// streamTo receives Gemini answers as they are generated when not nil
	streamTo io.Writer
	// googleSearch lets Gemini ground its answers with Google Search
	googleSearch bool
}

// newGateway builds the gateway of one provider. model may be empty.
func newGateway(ctx context.Context, provider, model string, creds credentials.Provider, httpClient *http.Client, opts gatewayOptions) (toolloop.Gateway, error) {
	if model == "" {
		model = defaultModels[provider]
	}
	geminiOpts := []gemini.Option{gemini.WithSystemInstructions(opts.system), gemini.WithTemperature(temperature)}
	if opts.streamTo != nil {
		w := opts.streamTo
		geminiOpts = append(geminiOpts, gemini.WithStream(func(_ context.Context, delta string) {
			io.WriteString(w, delta)
		}))
	}
	if opts.googleSearch {
		if provider != "gemini" && provider != "vertex" {
			return nil, fmt.Errorf("google search grounding is only available on gemini and vertex, not %s", provider)
		}
		geminiOpts = append(geminiOpts, gemini.WithGoogleSearch())
	}
	switch provider {
	case "gemini":
		key, err := creds.APIKey(provider)
		if err != nil {
			return nil, err
		}
		return gemini.NewWithAPIKey(ctx, key, model, httpClient, geminiOpts...)
	case "vertex":
		gc, err := creds.GoogleCloud()
		if err != nil {
			return nil, err
		}
		return gemini.NewVertex(ctx, gemini.VertexConfig{Project: gc.ProjectID, ServiceAccountKey: gc.ServiceAccountKey}, model, httpClient, geminiOpts...)
	case "anthropic":
		key, err := creds.APIKey(provider)
		if err != nil {
			return nil, err
		}
		return anthropic.NewWithAPIKey(key, model, httpClient,
			anthropic.WithSystemInstructions(opts.system), anthropic.WithTemperature(temperature)), nil
	}

	p, ok := openai.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	key, err := creds.APIKey(provider)
	if err != nil {
		return nil, err
	}
	return openai.NewForProvider(p, key, model, httpClient,
		openai.WithSystemInstructions(opts.system), openai.WithTemperature(temperature)), nil
}

// buildGateway returns the gateway of cfg.provider, behind a FallbackGateway
// when fallback providers are configured. -model only applies to cfg.provider.
func buildGateway(ctx context.Context, cfg config, creds credentials.Provider, httpClient *http.Client, opts gatewayOptions) (toolloop.Gateway, error) {
	opts.streamTo = cfg.streamTo
	primary, err := newGateway(ctx, cfg.provider, cfg.model, creds, httpClient, opts)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.provider, err)
	}
	if len(cfg.fallback) == 0 {
		return primary, nil
	}
	gateways := []toolloop.Gateway{primary}
	for _, name := range cfg.fallback {
		g, err := newGateway(ctx, name, "", creds, httpClient, opts)
		if err != nil {
			return nil, fmt.Errorf("fallback provider %s: %w", name, err)
		}
		gateways = append(gateways, g)
	}
	return toolloop.NewFallbackGateway(gateways, nil)
}

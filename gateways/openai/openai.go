// Package openai implements toolloop.Gateway over the OpenAI Chat Completions API
// and the OpenAI-compatible endpoints of Groq, xAI and Fireworks.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/openai/openai-go/v3/shared/constant"

	"github.com/spachava753/toolloop"
)

// CompletionService is the subset of the OpenAI client used by Gateway.
// *oai.ChatCompletionService satisfies it; tests provide stubs.
type CompletionService interface {
	New(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) (*oai.ChatCompletion, error)
}

var _ CompletionService = (*oai.ChatCompletionService)(nil)

// Gateway converses with a chat completions endpoint.
type Gateway struct {
	client             CompletionService
	provider           string
	model              string
	systemInstructions string
	temperature        *float64
	maxTokens          int64
	responseFormat     *shared.ResponseFormatJSONSchemaParam
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSystemInstructions sets the system message sent before the conversation.
func WithSystemInstructions(s string) Option {
	return func(g *Gateway) { g.systemInstructions = s }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = &t }
}

// WithMaxTokens caps the number of generated tokens per call.
func WithMaxTokens(n int64) Option {
	return func(g *Gateway) { g.maxTokens = n }
}

// WithProviderName overrides the provider name reported in errors.
func WithProviderName(name string) Option {
	return func(g *Gateway) { g.provider = name }
}

// WithResponseSchema constrains final answers to JSON matching schema. Use
// DecodeStructured to read the answer.
func WithResponseSchema(name string, schema *jsonschema.Schema) Option {
	return func(g *Gateway) {
		g.responseFormat = &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema,
				Strict: oai.Bool(true),
			},
		}
	}
}

// New returns a Gateway using client, which is usually &oai.NewClient(...).Chat.Completions.
func New(client CompletionService, model string, opts ...Option) *Gateway {
	g := &Gateway{
		client:   client,
		provider: OpenAI.Name,
		model:    model,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Converse implements toolloop.Gateway.
func (g *Gateway) Converse(ctx context.Context, conversation toolloop.Conversation, capabilities []toolloop.Capability) (toolloop.Reply, error) {
	params, err := g.params(conversation, capabilities)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.New(ctx, params)
	if err != nil {
		return nil, g.classify(err)
	}
	return g.reply(resp)
}

func (g *Gateway) params(conversation toolloop.Conversation, capabilities []toolloop.Capability) (oai.ChatCompletionNewParams, error) {
	messages, err := toMessages(conversation)
	if err != nil {
		return oai.ChatCompletionNewParams{}, err
	}
	if g.systemInstructions != "" {
		messages = append([]oai.ChatCompletionMessageParamUnion{oai.SystemMessage(g.systemInstructions)}, messages...)
	}

	params := oai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: messages,
	}
	if g.temperature != nil {
		params.Temperature = oai.Float(*g.temperature)
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(g.maxTokens)
	}
	if g.responseFormat != nil {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{OfJSONSchema: g.responseFormat}
	}

	for _, c := range capabilities {
		tool, err := toTool(c)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		params.Tools = append(params.Tools, tool)
	}
	return params, nil
}

// toMessages converts the conversation to chat completion messages.
func toMessages(conversation toolloop.Conversation) ([]oai.ChatCompletionMessageParamUnion, error) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, conversation.Len())
	for i, turn := range conversation.All() {
		switch turn.Role {
		case toolloop.Caller:
			messages = append(messages, oai.UserMessage(turn.Content))

		case toolloop.Model:
			var p oai.ChatCompletionAssistantMessageParam
			p.Role = constant.ValueOf[constant.Assistant]()
			if turn.Content != "" {
				p.Content = oai.ChatCompletionAssistantMessageParamContentUnion{OfString: oai.String(turn.Content)}
			}
			for _, inv := range turn.Invocations {
				args, err := inv.ArgumentsJSON()
				if err != nil {
					return nil, fmt.Errorf("turn %d: failed to marshal arguments of %s: %w", i, inv.ID, err)
				}
				p.ToolCalls = append(p.ToolCalls, oai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &oai.ChatCompletionMessageFunctionToolCallParam{
						ID:   inv.ID,
						Type: constant.ValueOf[constant.Function](),
						Function: oai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      inv.Name,
							Arguments: string(args),
						},
					},
				})
			}
			messages = append(messages, oai.ChatCompletionMessageParamUnion{OfAssistant: &p})

		case toolloop.Result:
			if turn.Result == nil {
				return nil, fmt.Errorf("turn %d: result turn without result", i)
			}
			messages = append(messages, oai.ToolMessage(turn.Result.Text(), turn.Result.InvocationID))

		default:
			return nil, fmt.Errorf("turn %d: unsupported role %v", i, turn.Role)
		}
	}
	return messages, nil
}

func toTool(c toolloop.Capability) (oai.ChatCompletionToolUnionParam, error) {
	parameters, err := schemaToParameters(c.InputSchema)
	if err != nil {
		return oai.ChatCompletionToolUnionParam{}, fmt.Errorf("capability %q: %w", c.Name, err)
	}
	return oai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
		Name:        c.Name,
		Description: oai.String(c.Description),
		Parameters:  parameters,
	}), nil
}

// schemaToParameters renders a capability schema as the JSON object the API expects.
// A nil schema declares an object with no properties.
func schemaToParameters(schema *jsonschema.Schema) (shared.FunctionParameters, error) {
	if schema == nil {
		return shared.FunctionParameters{"type": "object", "properties": map[string]any{}}, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input schema: %w", err)
	}
	var params shared.FunctionParameters
	if err := json.Unmarshal(b, &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input schema: %w", err)
	}
	return params, nil
}

func (g *Gateway) reply(resp *oai.ChatCompletion) (toolloop.Reply, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, toolloop.MalformedResponseErr(g.provider, "response has no choices")
	}
	choice := resp.Choices[0]

	if choice.FinishReason == "content_filter" {
		msg := choice.Message.Refusal
		if msg == "" {
			msg = "content policy violation detected"
		}
		return nil, toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: g.provider, Type: "content_filter", Message: msg}
	}
	if choice.FinishReason == "length" {
		return nil, toolloop.TruncatedErr(g.provider)
	}
	if choice.Message.Refusal != "" && choice.Message.Content == "" && len(choice.Message.ToolCalls) == 0 {
		return nil, toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: g.provider, Type: "refusal", Message: choice.Message.Refusal}
	}

	var invocations []toolloop.CapabilityInvocation
	for i, tc := range choice.Message.ToolCalls {
		if tc.Type != "" && tc.Type != "function" {
			return nil, toolloop.MalformedResponseErr(g.provider, "tool call %d has unsupported type %q", i, tc.Type)
		}
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, toolloop.MalformedResponseErr(g.provider, "tool call %s has invalid arguments: %v", tc.ID, err)
			}
		}
		invocations = append(invocations, toolloop.CapabilityInvocation{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	usage := toolloop.Metrics{}
	if resp.Usage.PromptTokens > 0 {
		usage[toolloop.UsageMetricInputTokens] = int(resp.Usage.PromptTokens)
	}
	if resp.Usage.CompletionTokens > 0 {
		usage[toolloop.UsageMetricGenerationTokens] = int(resp.Usage.CompletionTokens)
	}

	return toolloop.NewReply(g.provider, choice.Message.Content, invocations, usage)
}

// classify maps client errors to toolloop.GatewayErr.
func (g *Gateway) classify(err error) error {
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		msg := apierr.Message
		if msg == "" {
			msg = http.StatusText(apierr.StatusCode)
		}
		return toolloop.NewStatusErr(g.provider, apierr.StatusCode, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return toolloop.GatewayErr{Kind: toolloop.GatewayTimeout, Provider: g.provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return toolloop.GatewayErr{Kind: toolloop.GatewayTimeout, Provider: g.provider, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: g.provider, Message: "connection failed", Err: err}
}

// DecodeStructured decodes a final answer produced under WithResponseSchema.
func DecodeStructured[T any](answer string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(answer), &v); err != nil {
		return v, fmt.Errorf("answer is not valid structured output: %w", err)
	}
	return v, nil
}

// Provider is an OpenAI-compatible endpoint.
type Provider struct {
	Name    string
	BaseURL string
}

var (
	OpenAI    = Provider{Name: "openai", BaseURL: "https://api.openai.com/v1"}
	Groq      = Provider{Name: "groq", BaseURL: "https://api.groq.com/openai/v1"}
	XAI       = Provider{Name: "xai", BaseURL: "https://api.x.ai/v1"}
	Fireworks = Provider{Name: "fireworks", BaseURL: "https://api.fireworks.ai/inference/v1"}
)

// Providers lists the known endpoints by name.
var Providers = map[string]Provider{
	OpenAI.Name:    OpenAI,
	Groq.Name:      Groq,
	XAI.Name:       XAI,
	Fireworks.Name: Fireworks,
}

// NewForProvider builds a client for p and returns a Gateway on it. httpClient
// may be nil.
func NewForProvider(p Provider, apiKey, model string, httpClient *http.Client, opts ...Option) *Gateway {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.BaseURL),
		// retries belong to toolloop.RetryGateway
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	client := oai.NewClient(clientOpts...)
	return New(&client.Chat.Completions, model, append([]Option{WithProviderName(p.Name)}, opts...)...)
}

var _ toolloop.Gateway = (*Gateway)(nil)

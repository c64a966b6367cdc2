// Package anthropic implements toolloop.Gateway over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	a "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spachava753/toolloop"
)

const providerName = "anthropic"

// DefaultMaxTokens is sent when no WithMaxTokens option is given; the API requires one.
const DefaultMaxTokens = 4096

// MessageService is the subset of the Anthropic client used by Gateway.
type MessageService interface {
	New(ctx context.Context, body a.MessageNewParams, opts ...option.RequestOption) (*a.Message, error)
	CountTokens(ctx context.Context, body a.MessageCountTokensParams, opts ...option.RequestOption) (*a.MessageTokensCount, error)
}

var _ MessageService = (*a.MessageService)(nil)

// Gateway converses with a Claude model.
type Gateway struct {
	client             MessageService
	model              string
	systemInstructions string
	temperature        *float64
	maxTokens          int64
}

type Option func(*Gateway)

func WithSystemInstructions(s string) Option {
	return func(g *Gateway) { g.systemInstructions = s }
}

func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = &t }
}

func WithMaxTokens(n int64) Option {
	return func(g *Gateway) { g.maxTokens = n }
}

// New returns a Gateway using client, usually &a.NewClient(...).Messages.
func New(client MessageService, model string, opts ...Option) *Gateway {
	g := &Gateway{client: client, model: model, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewWithAPIKey builds a client for the public API. httpClient may be nil.
func NewWithAPIKey(apiKey, model string, httpClient *http.Client, opts ...Option) *Gateway {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	client := a.NewClient(clientOpts...)
	return New(&client.Messages, model, opts...)
}

// Converse implements toolloop.Gateway.
func (g *Gateway) Converse(ctx context.Context, conversation toolloop.Conversation, capabilities []toolloop.Capability) (toolloop.Reply, error) {
	messages, err := toMessages(conversation)
	if err != nil {
		return nil, err
	}

	params := a.MessageNewParams{
		Model:     a.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages:  messages,
	}
	if g.systemInstructions != "" {
		params.System = []a.TextBlockParam{{Text: g.systemInstructions}}
	}
	if g.temperature != nil {
		params.Temperature = a.Float(*g.temperature)
	}
	for _, c := range capabilities {
		tool := toTool(c)
		params.Tools = append(params.Tools, a.ToolUnionParam{OfTool: &tool})
	}

	resp, err := g.client.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	return reply(resp)
}

func toTool(c toolloop.Capability) a.ToolParam {
	schema := a.ToolInputSchemaParam{Properties: map[string]any{}}
	if c.InputSchema != nil {
		if c.InputSchema.Properties != nil {
			schema.Properties = c.InputSchema.Properties
		}
		schema.Required = c.InputSchema.Required
	}
	return a.ToolParam{
		Name:        c.Name,
		Description: a.String(c.Description),
		InputSchema: schema,
	}
}

// toMessages converts the conversation to Messages API input. Results of one
// model turn are sent together in a single user message.
func toMessages(conversation toolloop.Conversation) ([]a.MessageParam, error) {
	var messages []a.MessageParam
	pendingResults := false
	for i, turn := range conversation.All() {
		switch turn.Role {
		case toolloop.Caller:
			messages = append(messages, a.NewUserMessage(a.NewTextBlock(turn.Content)))
			pendingResults = false

		case toolloop.Model:
			var blocks []a.ContentBlockParamUnion
			if turn.Content != "" {
				blocks = append(blocks, a.NewTextBlock(turn.Content))
			}
			for _, inv := range turn.Invocations {
				input, err := inv.ArgumentsJSON()
				if err != nil {
					return nil, fmt.Errorf("turn %d: failed to marshal arguments of %s: %w", i, inv.ID, err)
				}
				blocks = append(blocks, a.NewToolUseBlock(inv.ID, input, inv.Name))
			}
			messages = append(messages, a.NewAssistantMessage(blocks...))
			pendingResults = false

		case toolloop.Result:
			if turn.Result == nil {
				return nil, fmt.Errorf("turn %d: result turn without result", i)
			}
			block := a.NewToolResultBlock(turn.Result.InvocationID, turn.Result.Text(), turn.Result.Failed())
			if pendingResults {
				last := &messages[len(messages)-1]
				last.Content = append(last.Content, block)
				continue
			}
			messages = append(messages, a.NewUserMessage(block))
			pendingResults = true

		default:
			return nil, fmt.Errorf("turn %d: unsupported role %v", i, turn.Role)
		}
	}
	return messages, nil
}

func reply(resp *a.Message) (toolloop.Reply, error) {
	if resp == nil {
		return nil, toolloop.MalformedResponseErr(providerName, "empty response")
	}
	if resp.StopReason == "refusal" {
		return nil, toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: providerName, Type: "refusal", Message: "the model refused to answer"}
	}
	if resp.StopReason == "max_tokens" {
		return nil, toolloop.TruncatedErr(providerName)
	}

	var text string
	var invocations []toolloop.CapabilityInvocation
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, toolloop.MalformedResponseErr(providerName, "tool use %s has invalid input: %v", block.ID, err)
				}
			}
			invocations = append(invocations, toolloop.CapabilityInvocation{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		case "thinking", "redacted_thinking":
			// not part of the conversation
		default:
			return nil, toolloop.MalformedResponseErr(providerName, "unknown content type %q", block.Type)
		}
	}

	usage := toolloop.Metrics{
		toolloop.UsageMetricInputTokens:      int(resp.Usage.InputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.CacheCreationInputTokens),
		toolloop.UsageMetricGenerationTokens: int(resp.Usage.OutputTokens),
	}
	return toolloop.NewReply(providerName, text, invocations, usage)
}

func classify(err error) error {
	var apierr *a.Error
	if errors.As(err, &apierr) {
		return toolloop.NewStatusErr(providerName, apierr.StatusCode, apierr.Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return toolloop.GatewayErr{Kind: toolloop.GatewayTimeout, Provider: providerName, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: providerName, Message: "request failed", Err: err}
}

// Count implements toolloop.TokenCounter using the count_tokens endpoint.
func (g *Gateway) Count(ctx context.Context, conversation toolloop.Conversation) (uint, error) {
	messages, err := toMessages(conversation)
	if err != nil {
		return 0, err
	}
	params := a.MessageCountTokensParams{
		Model:    a.Model(g.model),
		Messages: messages,
	}
	if g.systemInstructions != "" {
		params.System = a.MessageCountTokensParamsSystemUnion{
			OfTextBlockArray: []a.TextBlockParam{{Text: g.systemInstructions}},
		}
	}
	resp, err := g.client.CountTokens(ctx, params)
	if err != nil {
		return 0, classify(err)
	}
	return uint(resp.InputTokens), nil
}

var (
	_ toolloop.Gateway      = (*Gateway)(nil)
	_ toolloop.TokenCounter = (*Gateway)(nil)
)

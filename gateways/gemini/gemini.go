// Package gemini implements toolloop.Gateway over the Gemini API and Vertex AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"github.com/spachava753/toolloop"
)

const providerName = "gemini"

// Metrics of grounded replies, both []string.
const (
	MetricSearchQueries    = "search_queries"
	MetricGroundingSources = "grounding_sources"
)

// ContentGenerator is the subset of *genai.Models used by Gateway.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	CountTokens(ctx context.Context, model string, contents []*genai.Content, config *genai.CountTokensConfig) (*genai.CountTokensResponse, error)
}

var _ ContentGenerator = (*genai.Models)(nil)

// Gateway converses with a Gemini model.
type Gateway struct {
	models             ContentGenerator
	model              string
	systemInstructions string
	temperature        *float32
	stream             StreamFunc
	googleSearch       bool
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithSystemInstructions(s string) Option {
	return func(g *Gateway) { g.systemInstructions = s }
}

func WithTemperature(t float32) Option {
	return func(g *Gateway) { g.temperature = &t }
}

// WithGoogleSearch lets the model ground its answers in Google Search results.
// The search runs at the provider and never shows up as a capability invocation;
// the queries and cited pages are reported in the reply metrics under
// MetricSearchQueries and MetricGroundingSources.
func WithGoogleSearch() Option {
	return func(g *Gateway) { g.googleSearch = true }
}

// New returns a Gateway calling model through models, usually client.Models.
func New(models ContentGenerator, model string, opts ...Option) *Gateway {
	g := &Gateway{models: models, model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewWithAPIKey builds a Gemini API client. httpClient may be nil.
func NewWithAPIKey(ctx context.Context, apiKey, model string, httpClient *http.Client, opts ...Option) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return New(client.Models, model, opts...), nil
}

// VertexConfig identifies a Vertex AI project. ServiceAccountKey is the JSON key
// of a service account; when empty, application default credentials are used.
type VertexConfig struct {
	Project           string
	Location          string
	ServiceAccountKey []byte
}

// NewVertex builds a Vertex AI client. httpClient may be nil.
func NewVertex(ctx context.Context, cfg VertexConfig, model string, httpClient *http.Client, opts ...Option) (*Gateway, error) {
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: cfg.ServiceAccountKey,
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vertex credentials: %w", err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     cfg.Project,
		Location:    cfg.Location,
		Credentials: creds,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	return New(client.Models, model, opts...), nil
}

// Converse implements toolloop.Gateway.
func (g *Gateway) Converse(ctx context.Context, conversation toolloop.Conversation, capabilities []toolloop.Capability) (toolloop.Reply, error) {
	contents, err := toContents(conversation)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{Temperature: g.temperature}
	if g.systemInstructions != "" {
		config.SystemInstruction = genai.NewContentFromText(g.systemInstructions, genai.RoleUser)
	}
	if len(capabilities) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(capabilities))
		for _, c := range capabilities {
			decls = append(decls, toDeclaration(c))
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if g.googleSearch {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}

	var resp *genai.GenerateContentResponse
	var streamed bool
	if g.stream != nil {
		resp, streamed, err = g.generateStream(ctx, contents, config)
	} else {
		resp, err = g.models.GenerateContent(ctx, g.model, contents, config)
	}
	if err != nil {
		err = classify(err)
		var gerr toolloop.GatewayErr
		if streamed && errors.As(err, &gerr) {
			gerr.Streamed = true
			return nil, gerr
		}
		return nil, err
	}
	return reply(resp, conversation.Invocations())
}

func toDeclaration(c toolloop.Capability) *genai.FunctionDeclaration {
	decl := &genai.FunctionDeclaration{
		Name:        c.Name,
		Description: c.Description,
	}
	if c.InputSchema != nil {
		decl.ParametersJsonSchema = c.InputSchema
	} else {
		decl.ParametersJsonSchema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return decl
}

// toContents converts the conversation to Gemini contents. Consecutive result
// turns are merged into one user content, since Gemini expects all responses to
// a model turn together.
func toContents(conversation toolloop.Conversation) ([]*genai.Content, error) {
	var contents []*genai.Content
	for i, turn := range conversation.All() {
		switch turn.Role {
		case toolloop.Caller:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))

		case toolloop.Model:
			var parts []*genai.Part
			if turn.Content != "" {
				parts = append(parts, genai.NewPartFromText(turn.Content))
			}
			for _, inv := range turn.Invocations {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   inv.ID,
					Name: inv.Name,
					Args: inv.Arguments,
				}})
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleModel), Parts: parts})

		case toolloop.Result:
			if turn.Result == nil {
				return nil, fmt.Errorf("turn %d: result turn without result", i)
			}
			r := turn.Result
			response := map[string]any{"output": r.Value}
			if r.Failed() {
				response = map[string]any{"error": r.FailureReason}
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       r.InvocationID,
				Name:     r.Capability,
				Response: response,
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == string(genai.RoleUser) && isFunctionResponse(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{part}})

		default:
			return nil, fmt.Errorf("turn %d: unsupported role %v", i, turn.Role)
		}
	}
	return contents, nil
}

func isFunctionResponse(c *genai.Content) bool {
	return len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

// reply classifies a response. Gemini API responses often carry function calls
// without ids; those get ids numbered after the prior invocations in the
// conversation so that they never collide.
func reply(resp *genai.GenerateContentResponse, prior int) (toolloop.Reply, error) {
	if resp == nil {
		return nil, toolloop.MalformedResponseErr(providerName, "empty response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, toolloop.GatewayErr{
			Kind:     toolloop.GatewayProviderError,
			Provider: providerName,
			Type:     "content_filter",
			Message:  fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, toolloop.MalformedResponseErr(providerName, "response has no candidates")
	}
	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist,
		genai.FinishReasonSPII, genai.FinishReasonRecitation:
		return nil, toolloop.GatewayErr{
			Kind:     toolloop.GatewayProviderError,
			Provider: providerName,
			Type:     "content_filter",
			Message:  fmt.Sprintf("response blocked: %s", candidate.FinishReason),
		}
	case genai.FinishReasonMaxTokens:
		return nil, toolloop.TruncatedErr(providerName)
	}
	if candidate.Content == nil {
		return nil, toolloop.MalformedResponseErr(providerName, "candidate has no content")
	}

	var text string
	var invocations []toolloop.CapabilityInvocation
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", prior+len(invocations)+1)
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			invocations = append(invocations, toolloop.CapabilityInvocation{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
			continue
		}
		text += part.Text
	}

	usage := toolloop.Metrics{}
	if md := resp.UsageMetadata; md != nil {
		usage[toolloop.UsageMetricInputTokens] = int(md.PromptTokenCount)
		usage[toolloop.UsageMetricGenerationTokens] = int(md.CandidatesTokenCount)
	}
	if gm := candidate.GroundingMetadata; gm != nil {
		if len(gm.WebSearchQueries) > 0 {
			usage[MetricSearchQueries] = gm.WebSearchQueries
		}
		var sources []string
		for _, chunk := range gm.GroundingChunks {
			if chunk != nil && chunk.Web != nil && chunk.Web.URI != "" {
				sources = append(sources, chunk.Web.URI)
			}
		}
		if len(sources) > 0 {
			usage[MetricGroundingSources] = sources
		}
	}
	return toolloop.NewReply(providerName, text, invocations, usage)
}

// classify maps genai errors to toolloop.GatewayErr.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return toolloop.NewStatusErr(providerName, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return toolloop.NewStatusErr(providerName, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return toolloop.GatewayErr{Kind: toolloop.GatewayTimeout, Provider: providerName, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return toolloop.GatewayErr{Kind: toolloop.GatewayProviderError, Provider: providerName, Message: "request failed", Err: err}
}

// Count implements toolloop.TokenCounter using the countTokens endpoint.
func (g *Gateway) Count(ctx context.Context, conversation toolloop.Conversation) (uint, error) {
	contents, err := toContents(conversation)
	if err != nil {
		return 0, err
	}
	resp, err := g.models.CountTokens(ctx, g.model, contents, nil)
	if err != nil {
		return 0, classify(err)
	}
	return uint(resp.TotalTokens), nil
}

var (
	_ toolloop.Gateway      = (*Gateway)(nil)
	_ toolloop.TokenCounter = (*Gateway)(nil)
)

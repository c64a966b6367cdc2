package gemini

import (
	"context"

	"google.golang.org/genai"
)

// StreamFunc receives answer text as the model produces it.
type StreamFunc func(ctx context.Context, delta string)

// WithStream makes the gateway use streaming generation and hand every text
// delta to fn. Converse still returns only once the whole reply has arrived.
func WithStream(fn StreamFunc) Option {
	return func(g *Gateway) { g.stream = fn }
}

// generateStream streams a response and merges the chunks into a single
// response: parts are concatenated in order, while the finish reason, grounding,
// prompt feedback and usage of the latest chunk that carries them win. The bool
// result reports whether any text reached the stream callback.
func (g *Gateway) generateStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, bool, error) {
	merged := &genai.GenerateContentResponse{}
	var streamed bool
	var parts []*genai.Part
	var finish genai.FinishReason
	var grounding *genai.GroundingMetadata
	for chunk, err := range g.models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return nil, streamed, err
		}
		if chunk == nil {
			continue
		}
		if chunk.PromptFeedback != nil {
			merged.PromptFeedback = chunk.PromptFeedback
		}
		if chunk.UsageMetadata != nil {
			merged.UsageMetadata = chunk.UsageMetadata
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0] == nil {
			continue
		}
		c := chunk.Candidates[0]
		// a blocked candidate arrives without content
		if c.FinishReason != "" {
			finish = c.FinishReason
		}
		if c.GroundingMetadata != nil {
			grounding = c.GroundingMetadata
		}
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil {
				continue
			}
			if p.Text != "" && !p.Thought && p.FunctionCall == nil {
				g.stream(ctx, p.Text)
				streamed = true
			}
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 || finish != "" {
		merged.Candidates = []*genai.Candidate{{
			Content:           &genai.Content{Role: string(genai.RoleModel), Parts: parts},
			FinishReason:      finish,
			GroundingMetadata: grounding,
		}}
	}
	return merged, streamed, nil
}

package openai

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/spachava753/toolloop"
)

// Message framing overhead used by chat models: every message costs
// tokensPerMessage on top of its content, and every reply is primed with
// replyPriming tokens.
const (
	tokensPerMessage = 3
	replyPriming     = 3
)

// Count implements toolloop.TokenCounter with a local tokenizer. The result is an
// estimate; tool definitions are not counted. The first call for an encoding
// downloads its vocabulary unless TIKTOKEN_CACHE_DIR points to a cached copy.
func (g *Gateway) Count(ctx context.Context, conversation toolloop.Conversation) (uint, error) {
	enc, err := tiktoken.EncodingForModel(g.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, fmt.Errorf("failed to load tokenizer: %w", err)
		}
	}

	count := func(s string) uint { return uint(len(enc.Encode(s, nil, nil))) }

	var total uint
	if g.systemInstructions != "" {
		total += tokensPerMessage + count(g.systemInstructions)
	}
	for _, turn := range conversation.All() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += tokensPerMessage + count(turn.Content)
		for _, inv := range turn.Invocations {
			args, err := inv.ArgumentsJSON()
			if err != nil {
				return 0, err
			}
			total += count(inv.Name) + count(string(args))
		}
		if turn.Result != nil {
			total += count(turn.Result.Text())
		}
	}
	return total + replyPriming, nil
}

var _ toolloop.TokenCounter = (*Gateway)(nil)

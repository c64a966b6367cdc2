package toolloop

import (
	"context"
	"sync"
)

// Step is one scripted converse outcome: a reply, or an error.
type Step struct {
	Reply Reply
	Err   error
}

// ScriptedGateway replays a fixed sequence of steps, one per Converse call, in
// order. It is useful to replay a recorded conversation deterministically and to
// drive the loop in tests without a provider. Calls past the end of the script
// return a malformed-response GatewayErr.
type ScriptedGateway struct {
	Steps []Step

	mu    sync.Mutex
	calls []Conversation
}

// NewScriptedGateway returns a ScriptedGateway replying with replies in order.
func NewScriptedGateway(replies ...Reply) *ScriptedGateway {
	steps := make([]Step, len(replies))
	for i, r := range replies {
		steps[i] = Step{Reply: r}
	}
	return &ScriptedGateway{Steps: steps}
}

func (s *ScriptedGateway) Converse(ctx context.Context, conversation Conversation, _ []Capability) (Reply, error) {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, conversation)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n >= len(s.Steps) {
		return nil, MalformedResponseErr("scripted", "script exhausted after %d replies", len(s.Steps))
	}
	step := s.Steps[n]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Reply, nil
}

// Calls returns the conversations passed to Converse so far.
func (s *ScriptedGateway) Calls() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, len(s.calls))
	copy(out, s.calls)
	return out
}

var _ Gateway = (*ScriptedGateway)(nil)

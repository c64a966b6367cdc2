package toolloop

import (
	"context"
)

// Gateway sends the conversation so far, plus the capabilities the model may
// request, to a model provider and returns the model's reply. One call is one
// network round trip; gateways do not retry (see RetryGateway).
//
// A Gateway returns either a FinalAnswer or CapabilityRequests, never anything
// else. A successful provider response that cannot be classified, e.g. an
// invocation payload that is not valid JSON, yields a GatewayErr of kind
// GatewayMalformedResponse.
type Gateway interface {
	Converse(ctx context.Context, conversation Conversation, capabilities []Capability) (Reply, error)
}

// TokenCounter is implemented by gateways that can count the tokens of a
// conversation before sending it.
type TokenCounter interface {
	Count(ctx context.Context, conversation Conversation) (uint, error)
}

// Reply is the model's answer to a converse call: FinalAnswer or CapabilityRequests.
type Reply interface {
	// Turn returns the Model turn to append to the conversation.
	Turn() Turn
	// Usage returns the usage metrics reported for the call, if any.
	Usage() Metrics

	reply()
}

// FinalAnswer is a reply with no capability invocations. Text is the answer.
type FinalAnswer struct {
	Text    string
	Metrics Metrics
}

func (f FinalAnswer) Turn() Turn     { return Turn{Role: Model, Content: f.Text} }
func (f FinalAnswer) Usage() Metrics { return f.Metrics }
func (FinalAnswer) reply()           {}

// CapabilityRequests is a reply asking for one or more capabilities to be run.
// Text holds any content the model produced alongside the requests.
type CapabilityRequests struct {
	Text        string
	Invocations []CapabilityInvocation
	Metrics     Metrics
}

func (c CapabilityRequests) Turn() Turn {
	return Turn{Role: Model, Content: c.Text, Invocations: c.Invocations}
}
func (c CapabilityRequests) Usage() Metrics { return c.Metrics }
func (CapabilityRequests) reply()           {}

var (
	_ Reply = FinalAnswer{}
	_ Reply = CapabilityRequests{}
)

// NewReply classifies a parsed provider response. Gateways call it so that every
// provider applies the same rules:
//   - no invocations and non-empty text is a FinalAnswer
//   - one or more invocations is CapabilityRequests
//   - no invocations and no text, an invocation without id or name, or a repeated
//     invocation id is a malformed-response GatewayErr
func NewReply(provider, text string, invocations []CapabilityInvocation, usage Metrics) (Reply, error) {
	if len(invocations) == 0 {
		if text == "" {
			return nil, MalformedResponseErr(provider, "response has neither content nor capability invocations")
		}
		return FinalAnswer{Text: text, Metrics: usage}, nil
	}
	if err := checkInvocations(provider, invocations); err != nil {
		return nil, err
	}
	return CapabilityRequests{Text: text, Invocations: invocations, Metrics: usage}, nil
}

// checkReply applies the NewReply rules to a reply built by hand.
func checkReply(provider string, reply Reply) error {
	switch reply := reply.(type) {
	case FinalAnswer:
		if reply.Text == "" {
			return MalformedResponseErr(provider, "final answer has no content")
		}
		return nil
	case CapabilityRequests:
		if len(reply.Invocations) == 0 {
			return MalformedResponseErr(provider, "capability requests carry no invocations")
		}
		return checkInvocations(provider, reply.Invocations)
	default:
		return MalformedResponseErr(provider, "unsupported reply type %T", reply)
	}
}

func checkInvocations(provider string, invocations []CapabilityInvocation) error {
	seen := make(map[string]struct{}, len(invocations))
	for i, inv := range invocations {
		if inv.ID == "" {
			return MalformedResponseErr(provider, "invocation %d has no id", i)
		}
		if inv.Name == "" {
			return MalformedResponseErr(provider, "invocation %s has no capability name", inv.ID)
		}
		if _, dup := seen[inv.ID]; dup {
			return MalformedResponseErr(provider, "duplicate invocation id %s", inv.ID)
		}
		seen[inv.ID] = struct{}{}
	}
	return nil
}

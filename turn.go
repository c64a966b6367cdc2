package toolloop

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Role identifies who produced a Turn.
type Role uint8

const (
	// Caller is the role of the party that submitted the query.
	Caller Role = iota
	// Model is the role of turns produced by a Gateway.
	Model
	// Result is the role of turns carrying the outcome of a capability invocation.
	Result
)

func (r Role) String() string {
	switch r {
	case Caller:
		return "caller"
	case Model:
		return "model"
	case Result:
		return "capability-result"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// MarshalText lets roles appear by name in JSON transcripts.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "caller":
		*r = Caller
	case "model":
		*r = Model
	case "capability-result":
		*r = Result
	default:
		return fmt.Errorf("unknown role %q", string(b))
	}
	return nil
}

// CapabilityInvocation is a model's request to run a capability with specific arguments.
// ID is unique within a conversation.
type CapabilityInvocation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ArgumentsJSON returns the arguments encoded as a JSON object. Nil arguments encode as {}.
func (c CapabilityInvocation) ArgumentsJSON() (json.RawMessage, error) {
	if c.Arguments == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(c.Arguments)
}

// CapabilityResult is the outcome of executing one invocation. Exactly one of
// Value and FailureReason is meaningful: a non-empty FailureReason marks the
// result as failed.
type CapabilityResult struct {
	InvocationID  string `json:"invocation_id"`
	Capability    string `json:"capability"`
	Value         string `json:"value,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Failed reports whether the invocation failed.
func (c CapabilityResult) Failed() bool {
	return c.FailureReason != ""
}

// Text renders the result the way it is fed back to a model.
func (c CapabilityResult) Text() string {
	if c.Failed() {
		return "error: " + c.FailureReason
	}
	return c.Value
}

// Turn is one immutable entry of a Conversation.
//
// Caller turns carry Content. Model turns carry Content and, when the model asks
// for capabilities, Invocations in the order the model emitted them. Result turns
// carry exactly one CapabilityResult.
type Turn struct {
	Role        Role                   `json:"role"`
	Content     string                 `json:"content,omitempty"`
	Invocations []CapabilityInvocation `json:"invocations,omitempty"`
	Result      *CapabilityResult      `json:"result,omitempty"`
}

// CallerTurn returns a Caller turn holding text.
func CallerTurn(text string) Turn {
	return Turn{Role: Caller, Content: text}
}

// ResultTurn returns a Result turn holding r.
func ResultTurn(r CapabilityResult) Turn {
	return Turn{Role: Result, Result: &r}
}

func (t Turn) clone() Turn {
	c := t
	if t.Invocations != nil {
		c.Invocations = make([]CapabilityInvocation, len(t.Invocations))
		for i, inv := range t.Invocations {
			inv.Arguments = maps.Clone(inv.Arguments)
			c.Invocations[i] = inv
		}
	}
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return c
}

// Conversation is an append-only log of turns. The zero value is an empty
// conversation. Append never modifies the receiver; it returns a new view, so a
// Conversation value handed to a Gateway or an Observer stays valid and unchanged
// no matter what the loop appends afterwards.
type Conversation struct {
	turns []Turn
}

// NewConversation starts a conversation with a single Caller turn.
func NewConversation(query string) Conversation {
	return Conversation{turns: []Turn{CallerTurn(query)}}
}

// Append returns a conversation with turns added at the end.
func (c Conversation) Append(turns ...Turn) Conversation {
	next := make([]Turn, len(c.turns), len(c.turns)+len(turns))
	copy(next, c.turns)
	for _, t := range turns {
		next = append(next, t.clone())
	}
	return Conversation{turns: next}
}

// Len returns the number of turns.
func (c Conversation) Len() int {
	return len(c.turns)
}

// At returns a copy of the i-th turn. It panics if i is out of range.
func (c Conversation) At(i int) Turn {
	return c.turns[i].clone()
}

// Last returns the most recent turn.
func (c Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.At(len(c.turns) - 1), true
}

// Turns returns a copy of every turn in order.
func (c Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = t.clone()
	}
	return out
}

// All iterates over the turns in order.
func (c Conversation) All() iter.Seq2[int, Turn] {
	return func(yield func(int, Turn) bool) {
		for i, t := range c.turns {
			if !yield(i, t.clone()) {
				return
			}
		}
	}
}

// Invocations counts the invocations across all Model turns.
func (c Conversation) Invocations() int {
	n := 0
	for _, t := range c.turns {
		if t.Role == Model {
			n += len(t.Invocations)
		}
	}
	return n
}

// MarshalJSON encodes the conversation as a JSON array of turns.
func (c Conversation) MarshalJSON() ([]byte, error) {
	if c.turns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.turns)
}

func (c *Conversation) UnmarshalJSON(b []byte) error {
	var turns []Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		return err
	}
	c.turns = slices.Clip(turns)
	return nil
}

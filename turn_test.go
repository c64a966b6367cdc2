package toolloop

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConversation_AppendDoesNotMutate(t *testing.T) {
	base := NewConversation("hello")
	a := base.Append(Turn{Role: Model, Content: "a"})
	b := base.Append(Turn{Role: Model, Content: "b"})

	if base.Len() != 1 {
		t.Fatalf("base.Len() = %d, want 1", base.Len())
	}
	if got := a.At(1).Content; got != "a" {
		t.Errorf("a.At(1) = %q, want a", got)
	}
	if got := b.At(1).Content; got != "b" {
		t.Errorf("b.At(1) = %q, want b", got)
	}
}

func TestConversation_TurnsAreCopies(t *testing.T) {
	args := map[string]any{"name": "John"}
	c := NewConversation("q").Append(Turn{
		Role:        Model,
		Invocations: []CapabilityInvocation{{ID: "1", Name: "greet", Arguments: args}},
	})

	// Mutating the caller's map or a returned turn must not leak into the log.
	args["name"] = "Jane"
	turns := c.Turns()
	turns[1].Invocations[0].Arguments["name"] = "Jim"
	turns[1].Content = "changed"

	got := c.At(1)
	if got.Content != "" {
		t.Errorf("Content = %q, want empty", got.Content)
	}
	if name := got.Invocations[0].Arguments["name"]; name != "John" {
		t.Errorf("argument name = %v, want John", name)
	}
}

func TestConversation_Iteration(t *testing.T) {
	c := NewConversation("q").
		Append(Turn{Role: Model, Invocations: []CapabilityInvocation{{ID: "1", Name: "x"}, {ID: "2", Name: "y"}}}).
		Append(ResultTurn(CapabilityResult{InvocationID: "1", Value: "ok"}), ResultTurn(CapabilityResult{InvocationID: "2", FailureReason: "bad"}))

	var roles []Role
	for _, turn := range c.All() {
		roles = append(roles, turn.Role)
	}
	if diff := cmp.Diff([]Role{Caller, Model, Result, Result}, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if c.Invocations() != 2 {
		t.Errorf("Invocations() = %d, want 2", c.Invocations())
	}
	last, ok := c.Last()
	if !ok || last.Result.Text() != "error: bad" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
	if _, ok := (Conversation{}).Last(); ok {
		t.Error("empty conversation Last() reported ok")
	}
}

func TestConversation_JSON(t *testing.T) {
	c := NewConversation("Greet someone named John").
		Append(Turn{Role: Model, Invocations: []CapabilityInvocation{{ID: "call_1", Name: "greet", Arguments: map[string]any{"name": "John"}}}}).
		Append(ResultTurn(CapabilityResult{InvocationID: "call_1", Capability: "greet", Value: "Hello, John!"})).
		Append(Turn{Role: Model, Content: "Hello, John!"})

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Conversation
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(c.Turns(), decoded.Turns()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw[2]["role"] != "capability-result" {
		t.Errorf("role encoded as %v, want capability-result", raw[2]["role"])
	}
}

func TestNewReply(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		invocations []CapabilityInvocation
		wantFinal   bool
		wantErr     bool
	}{
		{name: "final answer", text: "Hello, John!", wantFinal: true},
		{name: "empty reply", wantErr: true},
		{name: "requests", invocations: []CapabilityInvocation{{ID: "1", Name: "greet"}}},
		{name: "requests with text", text: "let me check", invocations: []CapabilityInvocation{{ID: "1", Name: "greet"}}},
		{name: "missing id", invocations: []CapabilityInvocation{{Name: "greet"}}, wantErr: true},
		{name: "missing name", invocations: []CapabilityInvocation{{ID: "1"}}, wantErr: true},
		{name: "duplicate id", invocations: []CapabilityInvocation{{ID: "1", Name: "a"}, {ID: "1", Name: "b"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := NewReply("test", tt.text, tt.invocations, nil)
			if tt.wantErr {
				var gerr GatewayErr
				if !errors.As(err, &gerr) || gerr.Kind != GatewayMalformedResponse {
					t.Fatalf("NewReply() error = %v, want malformed-response", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewReply() error = %v", err)
			}
			_, isFinal := reply.(FinalAnswer)
			if isFinal != tt.wantFinal {
				t.Errorf("reply type = %T, wantFinal %v", reply, tt.wantFinal)
			}
			if turn := reply.Turn(); turn.Role != Model || len(turn.Invocations) != len(tt.invocations) {
				t.Errorf("Turn() = %+v", turn)
			}
		})
	}
}

package toolloop

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// GenerateSchema is a helper function to help generate the schema definition for Capability.InputSchema
func GenerateSchema[T any]() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for type: %w", err)
	}
	// Set additionalProperties to false (disallow additional properties)
	if schema.AdditionalProperties == nil {
		schema.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}
	return schema, nil
}

// Capability is a named operation a model may request during a conversation.
//
// A capability with a single required string parameter:
//
//	{
//	    Name:        "greet",
//	    Description: "Greet a person by name.",
//	    InputSchema: &jsonschema.Schema{
//	        Type: "object",
//	        Properties: map[string]*jsonschema.Schema{
//	            "name": {
//	                Type:        "string",
//	                Description: "The name of the person to greet",
//	            },
//	        },
//	        Required: []string{"name"},
//	    },
//	    Handler: HandlerFunc(greet),
//	}
//
// A capability with no parameters:
//
//	{
//	    Name:        "get_current_time",
//	    Description: "Get the current server time.",
//	    InputSchema: nil,
//	    Handler:     HandlerFunc(now),
//	}
type Capability struct {
	// Name is the identifier the model uses to invoke the capability.
	// It must be unique within a Registry.
	Name string

	// Description explains what the capability does, so the model knows when to use it.
	Description string

	// InputSchema describes the arguments the capability accepts. Arguments are
	// validated against it before the handler runs. A nil value means the
	// capability takes no arguments and skips validation.
	InputSchema *jsonschema.Schema

	Handler Handler
}

// Handler executes a capability.
//
// Arguments have already been validated against the capability's input schema.
// A returned error is not fatal to the conversation: it is converted into a failed
// CapabilityResult and shown to the model, which may recover from it. Handlers
// should honor ctx, which carries the per-capability timeout.
type Handler interface {
	Call(ctx context.Context, arguments map[string]any) (string, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, arguments map[string]any) (string, error)

func (f HandlerFunc) Call(ctx context.Context, arguments map[string]any) (string, error) {
	return f(ctx, arguments)
}

var _ Handler = HandlerFunc(nil)

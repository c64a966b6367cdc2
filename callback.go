package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
)

// Validator is an interface that can be implemented by capability argument types
// to validate their contents after being unmarshaled from JSON.
//
// It covers checks JSON Schema cannot express, such as:
// - Cross-field validations (e.g., field A must be present if field B has a certain value)
// - Business rule validations (e.g., a divisor must not be zero)
//
// Example implementation:
//
//	type DivideArgs struct {
//	    A float64 `json:"a"`
//	    B float64 `json:"b"`
//	}
//
//	func (d *DivideArgs) Validate() error {
//	    if d.B == 0 {
//	        return fmt.Errorf("cannot divide by zero")
//	    }
//	    return nil
//	}
type Validator interface {
	// Validate checks if the struct's field values are valid.
	// It returns nil if validation passes, or an error describing the validation failure.
	Validate() error
}

// CapabilityFunc is a generic function type that wraps a function taking a
// strongly-typed argument struct, implementing the Handler interface.
//
// Example usage:
//
//	type GreetArgs struct {
//	    Name string `json:"name" jsonschema:"the name of the person to greet"`
//	}
//
//	func greet(ctx context.Context, args GreetArgs) (string, error) {
//	    return fmt.Sprintf("Hello, %s!", args.Name), nil
//	}
//
//	capability, err := NewCapability("greet", "Greet a person by name", greet)
type CapabilityFunc[T any] func(ctx context.Context, t T) (string, error)

// Call implements the Handler interface.
//
// It decodes the arguments into T, validates them if T implements Validator
// and calls the wrapped function. Decoding and Validator failures are returned
// as ArgumentValidationErr.
func (f CapabilityFunc[T]) Call(ctx context.Context, arguments map[string]any) (string, error) {
	var t T
	if arguments == nil {
		arguments = map[string]any{}
	}
	b, err := json.Marshal(arguments)
	if err != nil {
		return "", ArgumentValidationErr{Cause: fmt.Errorf("failed to marshal arguments: %w", err)}
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return "", ArgumentValidationErr{Cause: fmt.Errorf("failed to unmarshal arguments: %w", err)}
	}

	// Check if T implements Validator and validate if it does
	if validator, ok := any(&t).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return "", ArgumentValidationErr{Cause: err}
		}
	}

	return f(ctx, t)
}

// NewCapability builds a Capability whose input schema is generated from T.
func NewCapability[T any](name, description string, fn func(ctx context.Context, t T) (string, error)) (Capability, error) {
	schema, err := GenerateSchema[T]()
	if err != nil {
		return Capability{}, RegistrationErr{Capability: name, Cause: err}
	}
	return Capability{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler:     CapabilityFunc[T](fn),
	}, nil
}

// MustCapability is like NewCapability but panics on error. It is meant for
// package level capability declarations.
func MustCapability[T any](name, description string, fn func(ctx context.Context, t T) (string, error)) Capability {
	c, err := NewCapability(name, description, fn)
	if err != nil {
		panic(err)
	}
	return c
}

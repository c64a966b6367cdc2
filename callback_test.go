package toolloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// Test data structures
type SimpleParams struct {
	Message string `json:"message"`
}

type ValidatedParams struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p *ValidatedParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// Test callback functions
func simpleCallback(ctx context.Context, params SimpleParams) (string, error) {
	return fmt.Sprintf("Received: %s", params.Message), nil
}

func validatedCallback(ctx context.Context, params ValidatedParams) (string, error) {
	return fmt.Sprintf("User: %s (%s)", params.Name, params.Email), nil
}

func errorCallback(ctx context.Context, params SimpleParams) (string, error) {
	return "", fmt.Errorf("deliberate error")
}

func TestCapabilityFunc_Call(t *testing.T) {
	tests := []struct {
		name           string
		handler        Handler
		arguments      map[string]any
		want           string
		wantErr        bool
		wantValidation bool
		errContains    string
	}{
		{
			name:      "simple successful callback",
			handler:   CapabilityFunc[SimpleParams](simpleCallback),
			arguments: map[string]any{"message": "Hello, world!"},
			want:      "Received: Hello, world!",
		},
		{
			name:      "validated parameters success",
			handler:   CapabilityFunc[ValidatedParams](validatedCallback),
			arguments: map[string]any{"name": "John Doe", "email": "john@example.com"},
			want:      "User: John Doe (john@example.com)",
		},
		{
			name:           "validation failure",
			handler:        CapabilityFunc[ValidatedParams](validatedCallback),
			arguments:      map[string]any{"name": ""},
			wantErr:        true,
			wantValidation: true,
			errContains:    "name is required",
		},
		{
			name:           "unmarshal error",
			handler:        CapabilityFunc[SimpleParams](simpleCallback),
			arguments:      map[string]any{"message": 12.0},
			wantErr:        true,
			wantValidation: true,
			errContains:    "failed to unmarshal arguments",
		},
		{
			name:        "callback error",
			handler:     CapabilityFunc[SimpleParams](errorCallback),
			arguments:   map[string]any{"message": "x"},
			wantErr:     true,
			errContains: "deliberate error",
		},
		{
			name:      "nil arguments",
			handler:   CapabilityFunc[SimpleParams](simpleCallback),
			arguments: nil,
			want:      "Received: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.handler.Call(context.Background(), tt.arguments)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Call() expected error containing %q", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Call() error = %v, want containing %q", err, tt.errContains)
				}
				var ave ArgumentValidationErr
				if errors.As(err, &ave) != tt.wantValidation {
					t.Errorf("Call() error is ArgumentValidationErr = %v, want %v", !tt.wantValidation, tt.wantValidation)
				}
				return
			}
			if err != nil {
				t.Fatalf("Call() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Call() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewCapability_Schema(t *testing.T) {
	type WeatherArgs struct {
		Location string `json:"location" jsonschema:"the city and state, e.g. San Francisco, CA"`
		Unit     string `json:"unit,omitempty" jsonschema:"celsius or fahrenheit"`
	}
	c, err := NewCapability("get_weather", "Get the current weather", func(ctx context.Context, a WeatherArgs) (string, error) {
		return a.Location, nil
	})
	if err != nil {
		t.Fatalf("NewCapability() error = %v", err)
	}
	if c.InputSchema == nil || c.InputSchema.Type != "object" {
		t.Fatalf("InputSchema = %+v, want object schema", c.InputSchema)
	}
	if len(c.InputSchema.Required) != 1 || c.InputSchema.Required[0] != "location" {
		t.Errorf("Required = %v, want [location]", c.InputSchema.Required)
	}
	if c.InputSchema.AdditionalProperties == nil {
		t.Error("AdditionalProperties should disallow extra properties")
	}
	if got := c.InputSchema.Properties["location"].Description; got != "the city and state, e.g. San Francisco, CA" {
		t.Errorf("location description = %q", got)
	}
}

package toolloop

import (
	"errors"
	"fmt"
	"net/http"
)

// EmptyQueryErr is returned by Loop.Run when the caller query is empty.
// At least one Caller turn with content is required to seed a conversation.
var EmptyQueryErr = errors.New("empty query: a caller turn with content is required")

// CancelledErr is the terminal reason reported when the context passed to Loop.Run
// is cancelled (or reaches its deadline) while the loop is waiting on the Gateway
// or on capability executions.
var CancelledErr = errors.New("loop cancelled")

// DuplicateCapabilityErr is returned by Registry.Register when a capability with
// the same name is already registered. The string value is the capability name.
type DuplicateCapabilityErr string

func (d DuplicateCapabilityErr) Error() string {
	return fmt.Sprintf("capability %q already registered", string(d))
}

// UnknownCapabilityErr is returned when a capability name cannot be resolved in a
// Registry. When it is raised while the loop executes a model turn, the loop fails
// immediately without appending any result for that turn.
type UnknownCapabilityErr string

func (u UnknownCapabilityErr) Error() string {
	return fmt.Sprintf("unknown capability: %q", string(u))
}

// RegistrationErr is returned when registering a capability fails for a reason
// other than a duplicate name:
//   - Empty capability name
//   - Nil handler
//   - An input schema that cannot be resolved for validation
type RegistrationErr struct {
	// Capability is the name of the capability that failed to register
	Capability string
	// Cause is the underlying error that caused the registration to fail
	Cause error
}

func (r RegistrationErr) Error() string {
	return fmt.Sprintf("failed to register capability %q: %v", r.Capability, r.Cause)
}

// Unwrap returns the underlying cause of the registration failure
func (r RegistrationErr) Unwrap() error {
	return r.Cause
}

// ArgumentValidationErr is produced when the arguments of an invocation do not
// conform to the capability's input schema, or when a typed capability's
// Validator rejects them. It never reaches the caller of Loop.Run: it is
// reported back to the model as a failed CapabilityResult.
type ArgumentValidationErr struct {
	Capability string
	Cause      error
}

func (a ArgumentValidationErr) Error() string {
	return fmt.Sprintf("invalid arguments for capability %q: %v", a.Capability, a.Cause)
}

func (a ArgumentValidationErr) Unwrap() error {
	return a.Cause
}

// GatewayErrKind classifies a GatewayErr.
type GatewayErrKind string

const (
	// GatewayTimeout means the converse call did not complete within its deadline.
	GatewayTimeout GatewayErrKind = "timeout"
	// GatewayMalformedResponse means the provider answered successfully, but the reply
	// could not be classified as a final answer or as capability invocations.
	GatewayMalformedResponse GatewayErrKind = "malformed-response"
	// GatewayProviderError covers authentication failures, rate limiting, HTTP error
	// statuses and connection failures reported by the provider or its transport.
	GatewayProviderError GatewayErrKind = "provider-error"
)

// GatewayErr is returned by a Gateway when a converse call fails. It is always
// fatal to the loop.
type GatewayErr struct {
	Kind GatewayErrKind
	// Provider is the name of the provider behind the gateway, e.g. "openai"
	Provider string
	// StatusCode is the HTTP status code returned by the provider, if any
	StatusCode int
	// Type is the provider specific error type, e.g. "rate_limit_error"
	Type    string
	Message string
	Err     error
	// Streamed is set when part of the reply already reached a stream callback.
	// Such a call is never Temporary, since repeating it would repeat that output.
	Streamed bool
}

func (g GatewayErr) Error() string {
	msg := g.Message
	if msg == "" && g.Err != nil {
		msg = g.Err.Error()
	}
	prefix := "gateway"
	if g.Provider != "" {
		prefix = g.Provider + " gateway"
	}
	if g.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %s", prefix, g.Kind, g.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", prefix, g.Kind, msg)
}

func (g GatewayErr) Unwrap() error {
	return g.Err
}

// Temporary reports whether retrying the same converse call may succeed: timeouts,
// rate limiting (429) and server errors (5xx), unless the reply was partly streamed.
func (g GatewayErr) Temporary() bool {
	if g.Streamed {
		return false
	}
	switch g.Kind {
	case GatewayTimeout:
		return true
	case GatewayProviderError:
		return g.StatusCode == http.StatusTooManyRequests || (g.StatusCode >= 500 && g.StatusCode <= 599)
	}
	return false
}

// NewStatusErr builds a provider-error GatewayErr from an HTTP status code returned
// by a provider, picking the error type the way the provider SDKs report it.
func NewStatusErr(provider string, statusCode int, message string, cause error) GatewayErr {
	var typ string
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		typ = "authentication_error"
	case statusCode == http.StatusTooManyRequests:
		typ = "rate_limit_error"
	case statusCode == http.StatusServiceUnavailable:
		typ = "service_unavailable"
	case statusCode >= 500:
		typ = "api_error"
	default:
		typ = "invalid_request_error"
	}
	return GatewayErr{
		Kind:       GatewayProviderError,
		Provider:   provider,
		StatusCode: statusCode,
		Type:       typ,
		Message:    message,
		Err:        cause,
	}
}

// MalformedResponseErr builds a malformed-response GatewayErr.
func MalformedResponseErr(provider string, format string, args ...any) GatewayErr {
	return GatewayErr{
		Kind:     GatewayMalformedResponse,
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
	}
}

// TruncatedErr builds the provider-error GatewayErr reported when a reply was cut
// off at the output token limit.
func TruncatedErr(provider string) GatewayErr {
	return GatewayErr{
		Kind:     GatewayProviderError,
		Provider: provider,
		Type:     "max_tokens",
		Message:  "reply cut off at the output token limit",
	}
}

// IterationBoundExceededErr is the terminal reason reported when the model keeps
// requesting capabilities past the configured iteration bound.
type IterationBoundExceededErr struct {
	Bound int
}

func (i IterationBoundExceededErr) Error() string {
	return fmt.Sprintf("iteration bound of %d exceeded", i.Bound)
}

// LoopErr is returned by Loop.Run for every fatal failure. It records where the
// loop was when it failed. Err is one of GatewayErr, UnknownCapabilityErr,
// IterationBoundExceededErr or CancelledErr.
type LoopErr struct {
	// State is the state the loop was in when the failure occurred
	State State
	// Iteration is the number of completed transitions into ExecutingCapabilities
	Iteration int
	// InvocationID and Capability identify the offending invocation, when there is one
	InvocationID string
	Capability   string
	Err          error
}

func (l *LoopErr) Error() string {
	if l.Capability != "" {
		return fmt.Sprintf("loop failed in state %s at iteration %d (invocation %s, capability %q): %v",
			l.State, l.Iteration, l.InvocationID, l.Capability, l.Err)
	}
	return fmt.Sprintf("loop failed in state %s at iteration %d: %v", l.State, l.Iteration, l.Err)
}

func (l *LoopErr) Unwrap() error {
	return l.Err
}

package toolloop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/spachava753/toolloop/log"
)

type registeredCapability struct {
	Capability
	resolved *jsonschema.Resolved
}

// Registry maps capability names to capabilities. It is safe for concurrent use.
// The zero value is an empty registry ready to use.
type Registry struct {
	mu    sync.RWMutex
	caps  map[string]*registeredCapability
	order []string
}

// NewRegistry returns a registry holding caps, registered in order.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a capability.
//
// Returns an error if:
//   - The name is empty or the handler is nil (RegistrationErr)
//   - A capability with the same name is already registered (DuplicateCapabilityErr)
//   - The input schema cannot be resolved for validation (RegistrationErr)
func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return RegistrationErr{Capability: c.Name, Cause: errors.New("name is required")}
	}
	if c.Handler == nil {
		return RegistrationErr{Capability: c.Name, Cause: errors.New("handler is required")}
	}

	var resolved *jsonschema.Resolved
	if c.InputSchema != nil {
		var err error
		resolved, err = c.InputSchema.Resolve(&jsonschema.ResolveOptions{})
		if err != nil {
			return RegistrationErr{Capability: c.Name, Cause: fmt.Errorf("invalid input schema: %w", err)}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.caps == nil {
		r.caps = make(map[string]*registeredCapability)
	}
	if _, exists := r.caps[c.Name]; exists {
		return DuplicateCapabilityErr(c.Name)
	}
	r.caps[c.Name] = &registeredCapability{Capability: c, resolved: resolved}
	r.order = append(r.order, c.Name)
	return nil
}

// Resolve returns the capability registered under name, or UnknownCapabilityErr.
func (r *Registry) Resolve(name string) (Capability, error) {
	rc, err := r.lookup(name)
	if err != nil {
		return Capability{}, err
	}
	return rc.Capability, nil
}

func (r *Registry) lookup(name string) (*registeredCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.caps[name]
	if !ok {
		return nil, UnknownCapabilityErr(name)
	}
	return rc, nil
}

// Capabilities returns every registered capability in registration order.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name].Capability)
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Execute runs the invocation and always reports its outcome as a CapabilityResult.
// The only error it returns is UnknownCapabilityErr.
//
// Arguments are validated against the input schema first; a validation failure
// becomes a failed result carrying an ArgumentValidationErr message. Handler
// errors and panics become failed results too. If ctx is done before the handler
// returns, the result fails with the context error and the handler is left to
// observe the cancellation on its own.
func (r *Registry) Execute(ctx context.Context, inv CapabilityInvocation) (CapabilityResult, error) {
	rc, err := r.lookup(inv.Name)
	if err != nil {
		return CapabilityResult{}, err
	}

	result := CapabilityResult{InvocationID: inv.ID, Capability: inv.Name}

	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if rc.resolved != nil {
		if err := rc.resolved.Validate(args); err != nil {
			result.FailureReason = ArgumentValidationErr{Capability: inv.Name, Cause: err}.Error()
			return result, nil
		}
	}

	type outcome struct {
		value string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error(ctx, "capability panicked", fmt.Errorf("%v", p), "capability", inv.Name, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("capability panicked: %v", p)}
			}
		}()
		v, err := rc.Handler.Call(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			var ave ArgumentValidationErr
			if errors.As(o.err, &ave) && ave.Capability == "" {
				ave.Capability = inv.Name
				o.err = ave
			}
			result.FailureReason = o.err.Error()
			return result, nil
		}
		result.Value = o.value
		return result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.FailureReason = fmt.Sprintf("capability %q timed out", inv.Name)
		} else {
			result.FailureReason = fmt.Sprintf("capability %q cancelled: %v", inv.Name, ctx.Err())
		}
		return result, nil
	}
}

package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased job handler that accepts raw JSON payload
// and returns an optional continuation value. The typed Definition[T] is
// converted to a HandlerFunc at registration time by closing over JSON
// unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte) (any, error)

// CompletionFunc is a type-erased completion hook invoked after a
// successful execution with the handler's continuation value.
type CompletionFunc func(ctx context.Context, payload []byte, result any) error

// Registry maps job names to type-erased handler and completion functions.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]HandlerFunc
	completions map[string]CompletionFunc
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:    make(map[string]HandlerFunc),
		completions: make(map[string]CompletionFunc),
	}
}

// RegisterDefinition registers a typed job definition. The generic handler
// is wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler; the completion hook, if any, is wrapped the
// same way.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	handler := func(ctx context.Context, payload []byte) (any, error) {
		t, err := decodePayload[T](payload, def.Name)
		if err != nil {
			return nil, err
		}
		return def.Handler(ctx, t)
	}

	var completion CompletionFunc
	if def.OnCompleted != nil {
		completion = func(ctx context.Context, payload []byte, result any) error {
			t, err := decodePayload[T](payload, def.Name)
			if err != nil {
				return err
			}
			return def.OnCompleted(ctx, t, result)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[def.Name] = handler
	if completion != nil {
		r.completions[def.Name] = completion
	}
}

func decodePayload[T any](payload []byte, name string) (T, error) {
	var t T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t); err != nil {
			return t, fmt.Errorf("unmarshal payload for job %q: %w", name, err)
		}
	}
	return t, nil
}

// Get returns the handler for the given job name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// GetCompletion returns the completion hook for the given job name.
// Returns false if the definition registered no hook.
func (r *Registry) GetCompletion(name string) (CompletionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.completions[name]
	return c, ok
}

// Names returns all registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

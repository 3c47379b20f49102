package fnreg

import (
	"fmt"
	"sync"

	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
)

var (
	// ErrDuplicateName reports a second registration under a taken name.
	ErrDuplicateName = fmt.Errorf("function name already registered")
	// ErrUnknownFunction reports a lookup for a name never registered.
	ErrUnknownFunction = fmt.Errorf("unknown function")
	// ErrFrozen reports a registration after Freeze.
	ErrFrozen = fmt.Errorf("registry is frozen")
)

// Registry holds the catalog of invocable functions. Registration happens
// once at startup; after Freeze the registry is immutable and safe to
// share read-only across sessions.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]FunctionSpec
	order  []string
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]FunctionSpec)}
}

// Register inserts a spec when its name is not in use.
func (r *Registry) Register(spec FunctionSpec) error {
	if spec.Name == "" {
		return errorsx.Wrap(fmt.Errorf("function name is empty"), errorsx.ReasonValidation)
	}
	if spec.Handler == nil {
		return errorsx.Wrap(fmt.Errorf("function %s has no handler", spec.Name), errorsx.ReasonValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s: %w", spec.Name, ErrFrozen)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("register %s: %w", spec.Name, ErrDuplicateName)
	}
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Lookup fetches a spec by name.
func (r *Registry) Lookup(name string) (FunctionSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, exists := r.specs[name]
	if !exists {
		return FunctionSpec{}, errorsx.Wrap(fmt.Errorf("%w: %s", ErrUnknownFunction, name), errorsx.ReasonUnknownFunction)
	}
	return spec, nil
}

// Catalog returns all specs in registration order, for handoff to the
// model gateway.
func (r *Registry) Catalog() []FunctionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]FunctionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Freeze seals the registry. Further Register calls fail with ErrFrozen,
// which keeps the invocation path lock-contention-free mid-session.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Len reports the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

package attribution

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Method is the contract a feature-attribution strategy fulfils. A
// method is bound to one Model instance at construction and may attach
// instrumentation to the wrapped model while scoring.
type Method interface {
	// MethodName returns the registry name of the method.
	MethodName() string

	// Hook attaches any instrumentation the method needs on the wrapped
	// model. Attaching a second method while one is hooked is undefined;
	// callers unhook first.
	Hook(ctx context.Context) error

	// Unhook detaches instrumentation. Safe to call on an already
	// unhooked method.
	Unhook() error

	// AttributionArgs extracts and validates method-specific options
	// from a generic option bag. Unknown keys are ignored.
	AttributionArgs(params map[string]any) map[string]any

	// PrepareAndAttribute runs the scoring pass and returns one result
	// per input pair. start and end bound the attributed output steps;
	// end <= 0 means the full sequence.
	PrepareAndAttribute(ctx context.Context, texts, refs []string, start, end int, args map[string]any) ([]*SequenceAttribution, error)
}

// Factory constructs a method bound to a model.
type Factory func(m *Model) Method

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a method factory available under a name. Registering
// the same name twice overwrites the previous factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// LoadMethod constructs the named method bound to the given model.
func LoadMethod(name string, m *Model) (Method, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return factory(m), nil
}

// Methods returns the registered method names, sorted.
func Methods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HookState tracks hooked/unhooked state for methods that have no real
// instrumentation to manage. Meant to be embedded.
type HookState struct {
	hooked bool
}

// Hook marks the state as hooked.
func (h *HookState) Hook(ctx context.Context) error {
	h.hooked = true
	return nil
}

// Unhook marks the state as unhooked. Idempotent.
func (h *HookState) Unhook() error {
	h.hooked = false
	return nil
}

// Hooked reports whether the state is currently hooked.
func (h *HookState) Hooked() bool { return h.hooked }

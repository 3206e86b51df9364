package flow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	action "github.com/goliatone/go-action"
)

// Factory builds a fresh flow for one invocation.
type Factory func() Flow

// Registry maps action names to factories.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	namespacer func(string, string) string
}

func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]Factory),
		namespacer: defaultNamespace,
	}
}

// SetNamespacer customizes how names are namespaced.
func (r *Registry) SetNamespacer(fn func(string, string) string) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.namespacer = fn
	r.mu.Unlock()
}

// Register stores factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	return r.RegisterNamespaced("", name, factory)
}

// RegisterNamespaced stores factory under namespace::name.
func (r *Registry) RegisterNamespaced(namespace, name string, factory Factory) error {
	if strings.TrimSpace(name) == "" || factory == nil {
		return cloneFlowError(ErrInvalidFactory, "", nil, map[string]any{"name": name})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.namespacer(namespace, name)
	if _, exists := r.factories[key]; exists {
		return cloneFlowError(ErrDuplicateAction, fmt.Sprintf("action %s already registered", key), nil, map[string]any{
			"name": key,
		})
	}
	r.factories[key] = factory
	return nil
}

// Lookup returns the factory stored under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// New builds a flow by name. A panicking or nil returning factory is an
// error, not a crash.
func (r *Registry) New(name string) (flow Flow, err error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, cloneFlowError(ErrUnknownAction, fmt.Sprintf("unknown action %s", name), nil, map[string]any{
			"name": name,
		})
	}

	defer func() {
		if rec := recover(); rec != nil {
			flow = nil
			err = cloneFlowError(ErrInvalidFactory, fmt.Sprintf("factory for %s panicked", name), action.RecoverError(rec), map[string]any{
				"name": name,
			})
		}
	}()

	flow = factory()
	if flow == nil {
		return nil, cloneFlowError(ErrInvalidFactory, fmt.Sprintf("factory for %s returned nil", name), nil, map[string]any{
			"name": name,
		})
	}
	return flow, nil
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register stores factory under the action name of F and returns it.
func Register[F Flow](r *Registry, factory func() F) (string, error) {
	name := action.TypeNameFor[F]()
	if factory == nil {
		return name, cloneFlowError(ErrInvalidFactory, "", nil, map[string]any{"name": name})
	}
	return name, r.Register(name, func() Flow { return factory() })
}

// defaultNamespace concatenates namespace and id using ::, trimming whitespace.
func defaultNamespace(namespace, id string) string {
	ns := strings.TrimSpace(namespace)
	ident := strings.TrimSpace(id)
	if ns == "" {
		return ident
	}
	return ns + "::" + ident
}

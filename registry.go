package stateflow

import (
	"sync"

	"github.com/goliatone/go-errors"
)

// Registry owns every callback by id and, once frozen, the dependency graph
// derived from their declared inputs and outputs.
//
// Lifecycle: register all callbacks at startup, call Freeze exactly once,
// then share the registry read-only. All planning and execution methods
// require a frozen registry; registering after Freeze is a programmer error.
type Registry struct {
	mu        sync.RWMutex
	callbacks []RegisteredCallback
	byName    map[string]CallbackID
	frozen    bool
	graph     *depGraph
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]CallbackID),
	}
}

// Register appends a callback and returns its assigned id.
func (r *Registry) Register(cb Callback) (CallbackID, error) {
	if cb.Name == "" {
		return 0, errors.New("callback name is required", errors.CategoryBadInput).
			WithTextCode(ErrCodeCallbackInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, errors.New("cannot register callbacks after registry has been frozen", errors.CategoryConflict).
			WithTextCode(ErrCodeRegistryFrozen).
			WithMetadata(map[string]any{"callback": cb.Name})
	}
	if existing, ok := r.byName[cb.Name]; ok {
		return 0, errors.New("callback name already registered", errors.CategoryConflict).
			WithTextCode(ErrCodeCallbackInvalid).
			WithMetadata(map[string]any{"callback": cb.Name, "existing_id": existing.Index()})
	}

	id := CallbackID(len(r.callbacks))
	r.callbacks = append(r.callbacks, RegisteredCallback{ID: id, Callback: cb})
	r.byName[cb.Name] = id
	return id, nil
}

// Freeze seals the registry, derives the dependency graph, and computes the
// topological rank of every callback. A cyclic registration fails here: the
// system must not start with a cyclic graph. Calling Freeze twice is a
// programmer error.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry already frozen", errors.CategoryConflict).
			WithTextCode(ErrCodeRegistryAlreadyFrozen)
	}

	graph, err := buildDepGraph(r.callbacks)
	if err != nil {
		return err
	}

	r.graph = graph
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze has completed.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Get returns the callback registered under id.
func (r *Registry) Get(id CallbackID) (Callback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id.Index() >= len(r.callbacks) {
		return Callback{}, errors.New("unknown callback id", errors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownCallback).
			WithMetadata(map[string]any{"id": id.Index()})
	}
	return r.callbacks[id.Index()].Callback, nil
}

// Lookup returns the id registered under a callback name.
func (r *Registry) Lookup(name string) (CallbackID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// All returns every registered callback with its id, in registration order.
func (r *Registry) All() []RegisteredCallback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegisteredCallback, len(r.callbacks))
	copy(out, r.callbacks)
	return out
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Rank returns the topological rank of a callback: 0 means no unresolved
// dependencies, and rank strictly increases along every dependency edge.
func (r *Registry) Rank(id CallbackID) (int, error) {
	graph, err := r.frozenGraph()
	if err != nil {
		return 0, err
	}
	if id < 0 || id.Index() >= len(graph.rank) {
		return 0, errors.New("unknown callback id", errors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownCallback).
			WithMetadata(map[string]any{"id": id.Index()})
	}
	return graph.rank[id.Index()], nil
}

// Dependents returns the callbacks immediately triggered by id's outputs.
func (r *Registry) Dependents(id CallbackID) []CallbackID {
	graph, err := r.frozenGraph()
	if err != nil || id < 0 || id.Index() >= len(graph.dependents) {
		return nil
	}
	return append([]CallbackID(nil), graph.dependents[id.Index()]...)
}

// Ancestors returns the callbacks whose outputs can immediately trigger id.
func (r *Registry) Ancestors(id CallbackID) []CallbackID {
	graph, err := r.frozenGraph()
	if err != nil || id < 0 || id.Index() >= len(graph.ancestors) {
		return nil
	}
	return append([]CallbackID(nil), graph.ancestors[id.Index()]...)
}

// name is a diagnostics helper; unknown ids render as "?".
func (r *Registry) name(id CallbackID) string {
	if id < 0 || id.Index() >= len(r.callbacks) {
		return "?"
	}
	return r.callbacks[id.Index()].Callback.Name
}

// frozenGraph returns the derived graph, or an error when Freeze has not
// run. Once frozen the graph is immutable, so callers may hold the returned
// pointer without the lock.
func (r *Registry) frozenGraph() (*depGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.frozen {
		return nil, errors.New("registry not frozen", errors.CategoryConflict).
			WithTextCode(ErrCodeRegistryNotFrozen)
	}
	return r.graph, nil
}

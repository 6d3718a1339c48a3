package labextract

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEngineNotRegistered is returned when a caller asks for an unknown engine.
var ErrEngineNotRegistered = errors.New("engine not registered")

// Registry is an append-only table of engines keyed by id.
type Registry struct {
	mu      sync.RWMutex
	engines []Engine
	byID    map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Engine)}
}

// Register adds an engine. Ids are unique for the lifetime of the registry.
func (r *Registry) Register(e Engine) error {
	if e == nil {
		return fmt.Errorf("register engine: nil engine")
	}
	id := e.Info().ID
	if id == "" {
		return fmt.Errorf("register engine: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("register engine: %q already registered", id)
	}
	r.engines = append(r.engines, e)
	r.byID[id] = e
	return nil
}

// Get returns the engine registered under id.
func (r *Registry) Get(id string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotRegistered, id)
	}
	return e, nil
}

// List returns the metadata of every engine in registration order.
func (r *Registry) List() []EngineInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EngineInfo, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.Info())
	}
	return out
}

// Detect returns the engine with the highest CanHandle score for text. The
// earliest registered engine wins ties. It reports false for an empty
// registry.
func (r *Registry) Detect(text string) (Engine, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  Engine
		score float64
	)
	for _, e := range r.engines {
		if s := e.CanHandle(text); best == nil || s > score {
			best, score = e, s
		}
	}
	return best, score, best != nil
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// DefaultRegistry returns a new registry holding the built-in engines.
func DefaultRegistry(opts ...Option) (*Registry, error) {
	r := NewRegistry()
	for _, spec := range []EngineSpec{AsiriSpec(), GenericSpec()} {
		e, err := NewRuleEngine(spec, opts...)
		if err != nil {
			return nil, err
		}
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

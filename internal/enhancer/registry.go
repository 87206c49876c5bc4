package enhancer

import (
	"fmt"
	"sync"
)

// Registry maps resource kinds to their enhancer.
type Registry struct {
	enhancers map[Kind]Enhancer
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		enhancers: make(map[Kind]Enhancer),
	}
}

// NewDefaultRegistry returns a registry holding the extractor and script
// enhancers, the latter resolving placeholders with templates.
func NewDefaultRegistry(templates Substitutor) *Registry {
	r := NewRegistry()
	// Fresh registry, kinds are distinct.
	_ = r.Register(NewExtractorEnhancer())
	_ = r.Register(NewScriptEnhancer(templates))
	return r
}

// Register adds an enhancer. Registering a kind twice is an error.
func (r *Registry) Register(e Enhancer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.enhancers[e.Kind()]; exists {
		return fmt.Errorf("enhancer for %s already registered", e.Kind())
	}
	r.enhancers[e.Kind()] = e
	return nil
}

// Get returns the enhancer for kind.
func (r *Registry) Get(kind Kind) (Enhancer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.enhancers[kind]
	if !exists {
		return nil, fmt.Errorf("no enhancer registered for %s", kind)
	}
	return e, nil
}

// Enhance dispatches doc to the enhancer registered for kind.
func (r *Registry) Enhance(kind Kind, dir string, doc []byte) ([]byte, error) {
	e, err := r.Get(kind)
	if err != nil {
		return nil, err
	}
	return e.Enhance(dir, doc)
}

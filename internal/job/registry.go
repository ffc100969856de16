package job

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrPipelineExists is returned when two pipelines claim the same event name.
var ErrPipelineExists = errors.New("pipeline already registered")

// Registry maps event names to pipelines.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates a registry holding the given pipelines.
func NewRegistry(pipelines ...*Pipeline) (*Registry, error) {
	r := &Registry{pipelines: make(map[string]*Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a pipeline under its event name.
func (r *Registry) Register(p *Pipeline) error {
	if p == nil {
		return errors.New("pipeline cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pipelines[p.EventName]; exists {
		return fmt.Errorf("%w: %s", ErrPipelineExists, p.EventName)
	}
	r.pipelines[p.EventName] = p
	return nil
}

// Lookup returns the pipeline registered for eventName.
func (r *Registry) Lookup(eventName string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[eventName]
	return p, ok
}

// Has reports whether a pipeline is registered for eventName.
func (r *Registry) Has(eventName string) bool {
	_, ok := r.Lookup(eventName)
	return ok
}

// EventNames lists the registered event names in sorted order.
func (r *Registry) EventNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

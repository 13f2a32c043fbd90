// Package source defines the uniform adapter interface over external
// information providers and the registry the fan-out coordinator draws from.
package source

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/model"
)

// Well-known source IDs. These match the source_id values in profile
// configuration and in candidate provenance.
const (
	SourceDirectory  = "directory"
	SourcePerplexity = "perplexity"
	SourceClaude     = "claude"
	SourceWebpage    = "webpage"
)

// ErrNotApplicable is returned by an adapter that cannot serve a request,
// e.g. the webpage adapter when no website URL is known. The coordinator
// records it as a degraded source, not a failure.
var ErrNotApplicable = eris.New("source: adapter not applicable to identity")

// Adapter wraps exactly one external information provider. Implementations
// are stateless with respect to each other, honor the ctx deadline, and
// return adapter-local confidences that are not comparable across adapters.
type Adapter interface {
	// ID returns the stable source identifier used in provenance.
	ID() string
	// Kinds returns the entity kinds this adapter can research.
	Kinds() []model.EntityKind
	// Fetch queries the provider and returns partial field candidates.
	Fetch(ctx context.Context, ident model.Identity) ([]model.FieldCandidate, error)
}

// Registry manages the available source adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Re-registering an ID replaces the adapter but
// keeps its position.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
}

// Get returns an adapter by ID, or nil.
func (r *Registry) Get(id string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[id]
}

// Applicable returns the adapters serving the given entity kind, in
// registration order so fan-out launch order is stable.
func (r *Registry) Applicable(kind model.EntityKind) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Adapter
	for _, id := range r.order {
		a := r.adapters[id]
		for _, k := range a.Kinds() {
			if k == kind {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// List returns all registered adapter IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

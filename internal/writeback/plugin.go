// Package writeback pushes indexed metadata back out to files.
//
// Writers are plugins registered explicitly in a Registry. The Writer looks
// up a resource, finds the file it describes and hands its properties to
// every plugin that can handle the file's mime type.
package writeback

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Aman-CERP/semdesk/internal/rdf"
)

// Properties maps predicate URIs to their values.
type Properties map[string][]rdf.Term

// First returns the first value of predicate, or the zero Term.
func (p Properties) First(predicate string) rdf.Term {
	if vals := p[predicate]; len(vals) > 0 {
		return vals[0]
	}
	return rdf.Term{}
}

// Plugin writes metadata into, or next to, a file.
type Plugin interface {
	Name() string
	CanWrite(mimeType string) bool
	Write(ctx context.Context, path string, props Properties) error
}

// Registry holds the available plugins in registration order.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	byName  map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[p.Name()]; ok {
		return fmt.Errorf("writeback plugin %q already registered", p.Name())
	}
	r.byName[p.Name()] = p
	r.plugins = append(r.plugins, p)
	return nil
}

// Get returns the plugin called name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// For returns the plugins that can write mimeType, in registration order.
func (r *Registry) For(mimeType string) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plugin
	for _, p := range r.plugins {
		if p.CanWrite(mimeType) {
			out = append(out, p)
		}
	}
	return out
}

// Names lists registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

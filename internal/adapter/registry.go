// Package adapter holds the university source adapter registry and the
// fetch contract adapters share.
package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/columbiacals/menud/internal/fetch"
	"github.com/columbiacals/menud/internal/menu"
)

// PageFetcher is the slice of the fetch client adapters depend on. Tests
// substitute fakes.
type PageFetcher interface {
	Get(ctx context.Context, url string, headers http.Header) (fetch.Result, error)
}

// Registry keeps adapters in their configured order. The aggregator
// iterates this list; adapters are never discovered dynamically.
type Registry struct {
	adapters []menu.Adapter
	byTag    map[string]menu.Adapter
}

// NewRegistry builds a Registry from the given adapters. Duplicate
// university tags are rejected.
func NewRegistry(adapters ...menu.Adapter) (*Registry, error) {
	r := &Registry{byTag: make(map[string]menu.Adapter, len(adapters))}
	for _, a := range adapters {
		tag := a.University()
		if tag == "" {
			return nil, fmt.Errorf("adapter with empty university tag")
		}
		if _, dup := r.byTag[tag]; dup {
			return nil, fmt.Errorf("duplicate adapter for university %q", tag)
		}
		r.byTag[tag] = a
		r.adapters = append(r.adapters, a)
	}
	return r, nil
}

// Filter returns a new Registry containing only the named universities,
// preserving the enabled-list order. Unknown names are an error so a
// config typo cannot silently drop a school.
func (r *Registry) Filter(enabled []string) (*Registry, error) {
	var keep []menu.Adapter
	for _, tag := range enabled {
		a, ok := r.byTag[tag]
		if !ok {
			return nil, fmt.Errorf("no adapter registered for university %q", tag)
		}
		keep = append(keep, a)
	}
	return NewRegistry(keep...)
}

// Adapters returns the registered adapters in order.
func (r *Registry) Adapters() []menu.Adapter {
	out := make([]menu.Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Universities returns the registered tags in order.
func (r *Registry) Universities() []string {
	out := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.University())
	}
	return out
}

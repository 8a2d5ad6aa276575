package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Registry holds every known event-type mapping. It loads once at
// process start and is immutable afterwards.
type Registry struct {
	byName  map[string]*EventTypeMapping
	ordered []*EventTypeMapping
}

// Load reads and validates a mapping configuration file
// (JSON: event_type -> mapping).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping config: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw JSON configuration.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]*EventTypeMapping
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode mapping config: %w", err)
	}
	return New(raw)
}

// New validates the given mappings and freezes them into a registry.
func New(mappings map[string]*EventTypeMapping) (*Registry, error) {
	r := &Registry{byName: make(map[string]*EventTypeMapping, len(mappings))}
	for name, m := range mappings {
		if m == nil {
			return nil, fmt.Errorf("mapping %q: null entry", name)
		}
		m.Name = name
		if err := m.validate(); err != nil {
			return nil, err
		}
		r.byName[name] = m
		r.ordered = append(r.ordered, m)
	}
	// Name order, so iteration never depends on map randomization.
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].Name < r.ordered[j].Name
	})
	return r, nil
}

// Get returns the mapping for an event type.
func (r *Registry) Get(name string) (*EventTypeMapping, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Generic returns the universal fallback mapping, if configured.
func (r *Registry) Generic() (*EventTypeMapping, bool) {
	return r.Get(GenericType)
}

// All returns every mapping in name order.
func (r *Registry) All() []*EventTypeMapping {
	out := make([]*EventTypeMapping, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports the number of mappings.
func (r *Registry) Len() int { return len(r.ordered) }

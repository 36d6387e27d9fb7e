package platforms

import (
	"log"

	"ticket-trader/internal/config"
)

// Registry holds the enabled platform adapters keyed by name.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds adapters for every platform enabled in the config.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}

	constructors := map[string]func(config.PlatformConfig) Adapter{
		"stubhub":  NewStubHub,
		"tickpick": NewTickPick,
		"viagogo":  NewViagogo,
		"funzone":  NewFunZone,
	}

	for _, name := range config.KnownPlatforms {
		pc, ok := cfg.Platforms[name]
		if !ok || !pc.Enabled {
			continue
		}
		ctor, ok := constructors[name]
		if !ok {
			log.Printf("[platforms] no adapter for %s, skipping", name)
			continue
		}
		r.Register(ctor(pc))
	}

	return r
}

// NewRegistryWith builds a registry from explicit adapters, bypassing
// config. Used by the dry-run tooling and tests.
func NewRegistryWith(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any existing one with the same name.
func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a platform name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Subset returns the adapters for the requested names, skipping unknown ones.
// An empty request means all adapters.
func (r *Registry) Subset(names []string) []Adapter {
	if len(names) == 0 {
		return r.All()
	}
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		if a, ok := r.adapters[name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// factory.go: Entry-point factory registration table
//
// Manifest entry points resolve through an explicit registration table built
// at startup by the embedding application. This replaces dynamic symbol
// lookup: the manifest keeps its declarative role while module construction
// stays compile-time checked.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"sort"
	"sync"
)

// ModuleFactory constructs a module instance from a per-domain configuration
// map. The map's contents are opaque to this core; a nil map means the domain
// carries no configuration.
type ModuleFactory func(config map[string]any) (DecisionModule, error)

// SimpleModuleFactory constructs a module that takes no configuration.
type SimpleModuleFactory func() (DecisionModule, error)

type factoryEntry struct {
	create        ModuleFactory
	acceptsConfig bool
}

// FactoryTable maps manifest entry-point strings to module constructors.
//
// Whether a constructor accepts configuration is declared at registration
// time rather than probed with reflection: RegisterFactory for constructors
// that take a domain config map, RegisterSimple for ones that do not.
type FactoryTable struct {
	mu      sync.RWMutex
	entries map[string]factoryEntry
}

// NewFactoryTable creates an empty factory table.
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{
		entries: make(map[string]factoryEntry),
	}
}

// Register binds an entry point to a config-accepting constructor.
// Re-registering an entry point replaces the previous binding.
func (t *FactoryTable) Register(entryPoint string, factory ModuleFactory) error {
	if entryPoint == "" || factory == nil {
		return NewFactoryRegistrationError(entryPoint)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entryPoint] = factoryEntry{create: factory, acceptsConfig: true}
	return nil
}

// RegisterSimple binds an entry point to a constructor that ignores
// per-domain configuration.
func (t *FactoryTable) RegisterSimple(entryPoint string, factory SimpleModuleFactory) error {
	if entryPoint == "" || factory == nil {
		return NewFactoryRegistrationError(entryPoint)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entryPoint] = factoryEntry{
		create: func(map[string]any) (DecisionModule, error) {
			return factory()
		},
		acceptsConfig: false,
	}
	return nil
}

// resolve looks up the factory bound to an entry point.
func (t *FactoryTable) resolve(entryPoint string) (factoryEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[entryPoint]
	return entry, ok
}

// EntryPoints returns the registered entry points in sorted order.
func (t *FactoryTable) EntryPoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	points := make([]string, 0, len(t.entries))
	for entryPoint := range t.entries {
		points = append(points, entryPoint)
	}
	sort.Strings(points)
	return points
}

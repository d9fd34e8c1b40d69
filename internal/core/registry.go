package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the key is already registered or the definition is inconsistent.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Key))
	}
	if !isIdentifier(def.Info.Table) {
		panic(fmt.Sprintf("entity %s: invalid table name %q", def.Info.Key, def.Info.Table))
	}

	nk, ok := def.Field(def.Info.NaturalKey)
	if !ok || nk.Type != FieldText || nk.Derived {
		panic(fmt.Sprintf("entity %s: natural key %q must be a non-derived text field", def.Info.Key, def.Info.NaturalKey))
	}

	seen := make(map[string]bool, len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		if !isIdentifier(spec.Name) {
			panic(fmt.Sprintf("entity %s: invalid field name %q", def.Info.Key, spec.Name))
		}
		if seen[spec.Name] {
			panic(fmt.Sprintf("entity %s: duplicate field %q", def.Info.Key, spec.Name))
		}
		seen[spec.Name] = true
	}

	registry[def.Info.Key] = def
}

// Get returns an entity definition by key.
// Returns false if not found.
func Get(key string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Lookup is Get with an ErrUnknownEntity error for missing keys.
func Lookup(key string) (EntityDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return EntityDefinition{}, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	return def, nil
}

// All returns all registered entity definitions sorted by key.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityDefinition)
}

// isIdentifier accepts lowercase snake_case names only, so field and table
// names can be used as SQL identifiers.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

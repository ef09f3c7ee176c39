package common

import (
	"fmt"
	"sort"
)

// Factory creates a named component from configuration parameters
type Factory[T any] func(params map[string]any) (T, error)

// Registry manages the registration and creation of named components
// such as feature extractors and descriptor matchers.
type Registry[T any] struct {
	kind      string
	factories map[string]Factory[T]
}

// NewRegistry creates a new registry; kind is used in error messages
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a factory to the registry
func (r *Registry[T]) Register(name string, factory Factory[T]) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", r.kind)
	}
	if factory == nil {
		return fmt.Errorf("%s factory cannot be nil", r.kind)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%s %s is already registered", r.kind, name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a component by name with the given parameters
func (r *Registry[T]) Create(name string, params map[string]any) (T, error) {
	var zero T
	factory, exists := r.factories[name]
	if !exists {
		return zero, fmt.Errorf("unknown %s: %s", r.kind, name)
	}

	component, err := factory(params)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s %s: %w", r.kind, name, err)
	}

	return component, nil
}

// IsRegistered checks if a component with the given name is registered
func (r *Registry[T]) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// GetRegisteredNames returns the sorted names of all registered components
func (r *Registry[T]) GetRegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

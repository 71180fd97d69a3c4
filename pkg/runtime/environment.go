package runtime

import (
	"fmt"
	"sort"
)

type binding struct {
	value   Value
	mutable bool
}

// NativeResolver maps a name to a native function value. The root
// environment consults it when a lookup misses the whole scope chain.
type NativeResolver func(name string) (Value, bool)

// Environment provides lexical scoping for runtime values. Bindings are
// immutable unless introduced with DefineMutable; assignment never
// creates a binding.
type Environment struct {
	envLock
	bindings map[string]binding
	parent   *Environment
	natives  NativeResolver
}

// NewEnvironment creates a new environment, optionally nested under a
// parent.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		bindings: make(map[string]binding),
		parent:   parent,
	}
}

// Parent exposes the lexical parent (nil when root).
func (e *Environment) Parent() *Environment {
	return e.parent
}

// SetNativeResolver installs the builtin fallback on a root environment.
func (e *Environment) SetNativeResolver(resolver NativeResolver) {
	e.natives = resolver
}

// Define inserts or shadows an immutable binding in the current scope.
func (e *Environment) Define(name string, value Value) {
	e.lock()
	e.bindings[name] = binding{value: value}
	e.unlock()
}

// DefineMutable inserts or shadows a mutable binding in the current scope.
func (e *Environment) DefineMutable(name string, value Value) {
	e.lock()
	e.bindings[name] = binding{value: value, mutable: true}
	e.unlock()
}

// Resolve retrieves a binding, searching outward through the scope
// chain. At the root a miss falls back to the native resolver.
func (e *Environment) Resolve(name string) (Value, bool) {
	e.rlock()
	b, ok := e.bindings[name]
	e.runlock()
	if ok {
		return b.value, true
	}
	if e.parent != nil {
		return e.parent.Resolve(name)
	}
	if e.natives != nil {
		return e.natives(name)
	}
	return nil, false
}

// Assign updates an existing mutable binding in the first scope where
// the name appears. Assigning to an immutable binding or an undefined
// name fails.
func (e *Environment) Assign(name string, value Value) error {
	e.lock()
	b, ok := e.bindings[name]
	if ok {
		if !b.mutable {
			e.unlock()
			return fmt.Errorf("variable '%s' is not mutable", name)
		}
		e.bindings[name] = binding{value: value, mutable: true}
		e.unlock()
		return nil
	}
	e.unlock()
	if e.parent != nil {
		return e.parent.Assign(name, value)
	}
	return fmt.Errorf("undefined variable '%s'", name)
}

// Keys returns the local binding names in sorted order (useful for
// determinism in tests).
func (e *Environment) Keys() []string {
	e.rlock()
	keys := make([]string, 0, len(e.bindings))
	for k := range e.bindings {
		keys = append(keys, k)
	}
	e.runlock()
	sort.Strings(keys)
	return keys
}

// Extend creates a child scope.
func (e *Environment) Extend() *Environment {
	return NewEnvironment(e)
}

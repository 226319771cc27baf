// Package binding implements the dependency container. Values and
// factories are bound by name; child scopes shadow their parent, so a
// request scope can override bindings without touching application-level
// state.
package binding

import (
	"fmt"
	"sync"
)

// Factory builds a value on first resolution. It receives the container
// doing the resolving so it can pull its own dependencies.
type Factory func(c *Container) (any, error)

// UnresolvedError reports a name with no binding in scope.
type UnresolvedError struct {
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no binding for %q", e.Name)
}

type factoryEntry struct {
	build  Factory
	shared bool
}

// Container resolves named bindings. Lookup walks from the resolving
// scope up through its ancestors; the nearest binding wins.
type Container struct {
	parent *Container

	mu        sync.RWMutex
	values    map[string]any
	factories map[string]*factoryEntry
	instances map[string]any
}

// New creates an empty root container.
func New() *Container {
	return &Container{
		values:    make(map[string]any),
		factories: make(map[string]*factoryEntry),
		instances: make(map[string]any),
	}
}

// Scope creates a child container. Bindings made on the child shadow the
// parent's; resolution falls back to the parent for everything else.
func (c *Container) Scope() *Container {
	child := New()
	child.parent = c
	return child
}

// Bind registers a ready value under a name, replacing any prior binding
// at this scope.
func (c *Container) Bind(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
	delete(c.factories, name)
	delete(c.instances, name)
}

// BindFactory registers a factory invoked on every resolution.
func (c *Container) BindFactory(name string, build Factory) {
	c.bindFactory(name, build, false)
}

// BindShared registers a factory invoked at most once; the built value is
// cached at the scope that owns the binding, so every descendant scope
// observes the same instance.
func (c *Container) BindShared(name string, build Factory) {
	c.bindFactory(name, build, true)
}

func (c *Container) bindFactory(name string, build Factory, shared bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = &factoryEntry{build: build, shared: shared}
	delete(c.values, name)
	delete(c.instances, name)
}

// Provide resolves a binding by name. The factory, if any, runs against
// the container that initiated the resolution so overridden dependencies
// in child scopes take effect.
func (c *Container) Provide(name string) (any, error) {
	return c.resolve(name, c)
}

// Has reports whether a binding for name exists in this scope or any
// ancestor.
func (c *Container) Has(name string) bool {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		_, v := cur.values[name]
		_, f := cur.factories[name]
		cur.mu.RUnlock()
		if v || f {
			return true
		}
	}
	return false
}

func (c *Container) resolve(name string, origin *Container) (any, error) {
	c.mu.RLock()
	if value, ok := c.values[name]; ok {
		c.mu.RUnlock()
		return value, nil
	}
	if instance, ok := c.instances[name]; ok {
		c.mu.RUnlock()
		return instance, nil
	}
	entry, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		if c.parent != nil {
			return c.parent.resolve(name, origin)
		}
		return nil, &UnresolvedError{Name: name}
	}

	value, err := entry.build(origin)
	if err != nil {
		return nil, fmt.Errorf("build %q: %w", name, err)
	}
	if entry.shared {
		c.mu.Lock()
		// Another goroutine may have built it concurrently; first one wins.
		if existing, ok := c.instances[name]; ok {
			c.mu.Unlock()
			return existing, nil
		}
		c.instances[name] = value
		c.mu.Unlock()
	}
	return value, nil
}

// As resolves a binding and asserts its type.
func As[T any](c *Container, name string) (T, error) {
	var zero T
	value, err := c.Provide(name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("binding %q is %T, not %T", name, value, zero)
	}
	return typed, nil
}

// MustAs resolves a binding and panics on failure. For wiring code that
// runs at startup.
func MustAs[T any](c *Container, name string) T {
	value, err := As[T](c, name)
	if err != nil {
		panic(err)
	}
	return value
}

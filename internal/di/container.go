// Package di provides a minimal string-keyed service container used to
// wire bounded contexts together at startup.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container: look up a previously
// registered service by its token.
type ServiceRegistry interface {
	Get(name string) interface{}
	MustGet(name string) interface{}
}

// Container is the write+read side used during module registration.
type Container interface {
	ServiceRegistry
	Register(name string, service interface{})
}

type container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

// NewContainer creates an empty service container.
func NewContainer() Container {
	return &container{
		services: make(map[string]interface{}),
	}
}

func (c *container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

func (c *container) Get(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[name]
}

// MustGet panics if the token was never registered. Used by per-context
// Get* accessors where a missing dependency means a wiring bug, not a
// runtime condition.
func (c *container) MustGet(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.services[name]
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	return v
}

// RegisterToken builds a service via factory (which may read other
// already-registered services off sr) and registers it under token.
// Modules call this once per dependency during RegisterServices, in
// dependency order.
func RegisterToken[T any](c Container, token string, factory func(sr ServiceRegistry) T) {
	value := factory(c)
	c.Register(token, value)
}

// MustGetTyped fetches token from sr and asserts it to T, panicking
// with a descriptive message on a wiring mistake. Per-context Get*
// accessors are thin wrappers around this.
func MustGetTyped[T any](sr ServiceRegistry, token string) T {
	v := sr.MustGet(token)
	typed, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type %T", token, v))
	}
	return typed
}

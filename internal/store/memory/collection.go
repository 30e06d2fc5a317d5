package memory

import (
	"context"
	"sync"

	"pos-ledger/internal/core"
)

// collection is a keyed set of aggregates with one mutex per key.
// Readers and writers only ever see clones, never the stored pointer.
type collection[T any] struct {
	kind  string
	clone func(*T) *T

	mu    sync.RWMutex
	items map[string]*T
	locks map[string]*sync.Mutex
}

func newCollection[T any](kind string, clone func(*T) *T) *collection[T] {
	return &collection[T]{
		kind:  kind,
		clone: clone,
		items: make(map[string]*T),
		locks: make(map[string]*sync.Mutex),
	}
}

// lock returns the exclusive lock for key, creating it on first use.
func (c *collection[T]) lock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

func (c *collection[T]) insert(ctx context.Context, key string, v *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; exists {
		return core.NewError(core.KindInvalidState, "%s %s already exists", c.kind, key)
	}
	c.items[key] = c.clone(v)
	return nil
}

func (c *collection[T]) get(ctx context.Context, key string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "%s %s not found", c.kind, key)
	}
	return c.clone(v), nil
}

// update holds key's lock across load, fn and save. A failing fn leaves the
// stored aggregate untouched because fn only ever sees a clone.
func (c *collection[T]) update(ctx context.Context, key string, fn func(*T) error) (*T, error) {
	l := c.lock(key)
	l.Lock()
	defer l.Unlock()

	working, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[key] = c.clone(working)
	c.mu.Unlock()
	return working, nil
}

func (c *collection[T]) filter(ctx context.Context, keep func(*T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0)
	for _, v := range c.items {
		if keep(v) {
			out = append(out, *c.clone(v))
		}
	}
	return out, nil
}

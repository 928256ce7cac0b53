package cache

import (
	"fmt"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const DefaultCapacity = 600

// EntityCache is a fixed-capacity cache of entities by id with least-recently-used eviction.
//
// EntityCache is not safe for concurrent use. The owning model serializes all access.
type EntityCache[ID comparable, E any] struct {
	lru      *simplelru.LRU[ID, E]
	capacity int

	// simplelru reports removals through the eviction callback too
	invalidating bool
}

// NewEntityCache creates a cache holding at most capacity entries.
// onEvict, if not nil, is called with the id of every entry evicted due to capacity pressure.
func NewEntityCache[ID comparable, E any](capacity int, onEvict func(id ID)) (*EntityCache[ID, E], error) {
	c := &EntityCache[ID, E]{
		capacity: capacity,
	}

	var callback simplelru.EvictCallback[ID, E]
	if onEvict != nil {
		callback = func(id ID, _ E) {
			if c.invalidating {
				return
			}
			onEvict(id)
		}
	}

	lru, err := simplelru.NewLRU[ID, E](capacity, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru with capacity %d: %w", capacity, err)
	}
	c.lru = lru

	return c, nil
}

// Get returns the entry for id and marks it most-recently-used
func (c *EntityCache[ID, E]) Get(id ID) (E, bool) {
	return c.lru.Get(id)
}

// Put inserts or replaces the entry for id and marks it most-recently-used.
// The least-recently-used entry is evicted if the cache is full.
func (c *EntityCache[ID, E]) Put(id ID, entity E) {
	c.lru.Add(id, entity)

	if c.lru.Len() > c.capacity {
		panic(fmt.Errorf("%w: %d entries with capacity %d", domain.ErrCapacityViolation, c.lru.Len(), c.capacity))
	}
}

func (c *EntityCache[ID, E]) Invalidate(id ID) {
	c.invalidating = true
	defer func() {
		c.invalidating = false
	}()
	c.lru.Remove(id)
}

func (c *EntityCache[ID, E]) Len() int {
	return c.lru.Len()
}

func (c *EntityCache[ID, E]) Capacity() int {
	return c.capacity
}

// Keys returns the cached ids from least to most recently used
func (c *EntityCache[ID, E]) Keys() []ID {
	return c.lru.Keys()
}

package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/Amund211/entitysync/internal/adapters/cache"
	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/entitystore"
)

// Model owns the state of one model: its normalized store and entity cache.
//
// All access to the store and cache goes through the model's lock. Different models never share
// state, so they never block each other. No I/O happens while the lock is held.
type Model[ID comparable, E domain.Entity[ID]] struct {
	name string

	mu        sync.Mutex
	store     *entitystore.Store[ID, E]
	cache     *cache.EntityCache[ID, E]
	lastToken entitystore.Token

	// Highest version carried by push events for the stored entity of each id.
	// Dropped when a fetch result or a remove replaces the stored entity.
	eventVersions map[ID]int64
}

// ModelStats is a point-in-time snapshot of the sizes of a model's state
type ModelStats struct {
	Stored   int
	Cached   int
	Capacity int
	Pending  int
}

func NewModel[ID comparable, E domain.Entity[ID]](name string, cacheCapacity int) (*Model[ID, E], error) {
	attributes := modelAttributes(name)
	entityCache, err := cache.NewEntityCache[ID, E](cacheCapacity, func(ID) {
		metrics.cacheEvictions.Add(context.Background(), 1, attributes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache for model %s: %w", name, err)
	}

	return &Model[ID, E]{
		name:          name,
		store:         entitystore.New[ID, E](),
		cache:         entityCache,
		eventVersions: make(map[ID]int64),
	}, nil
}

func (m *Model[ID, E]) Name() string {
	return m.name
}

func (m *Model[ID, E]) peek(id ID) (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cache.Get(id)
}

func (m *Model[ID, E]) invalidate(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Invalidate(id)
}

func (m *Model[ID, E]) ids() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.IDs()
}

func (m *Model[ID, E]) entities() []E {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Entities()
}

func (m *Model[ID, E]) Stats() ModelStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ModelStats{
		Stored:   m.store.Len(),
		Cached:   m.cache.Len(),
		Capacity: m.cache.Capacity(),
		Pending:  m.store.PendingCount(),
	}
}

// beginFetch returns the cached entity for id if there is one.
// Otherwise a new token is issued and recorded as the pending request for id.
func (m *Model[ID, E]) beginFetch(id ID) (E, entitystore.Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entity, ok := m.cache.Get(id); ok {
		return entity, 0, true
	}

	m.lastToken++
	token := m.lastToken
	m.store.MarkPending(id, token)

	var empty E
	return empty, token, false
}

// commitFetch writes a fetched entity to the store and cache unless a push made it stale.
// The pending marker for token is released either way.
func (m *Model[ID, E]) commitFetch(id ID, token entitystore.Token, fetched E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.store.ClearPending(id, token)

	if !m.fetchIsFresh(id, token, fetched) {
		return false
	}

	m.cache.Put(id, fetched)
	m.store.Upsert(id, fetched)
	delete(m.eventVersions, id)
	return true
}

// fetchIsFresh decides whether the result of the fetch holding token may be committed.
//
// A fetch superseded by a remove never commits. When both the fetched and the stored entity are
// versioned the older one loses. A stored entity without a version of its own is versioned by the
// push events that wrote it. Without versions, any push that arrived after the fetch was issued
// wins over the fetch result.
func (m *Model[ID, E]) fetchIsFresh(id ID, token entitystore.Token, fetched E) bool {
	if !m.store.IsCurrent(id, token) {
		return false
	}

	if stored, ok := m.store.Get(id); ok {
		storedVersion, storedHasVersion := stored.EntityVersion()
		if !storedHasVersion {
			storedVersion, storedHasVersion = m.eventVersions[id]
		}
		fetchedVersion, fetchedHasVersion := fetched.EntityVersion()
		if storedHasVersion && fetchedHasVersion {
			return fetchedVersion >= storedVersion
		}
	}

	return !m.store.IsOvertaken(id, token)
}

func (m *Model[ID, E]) abandonFetch(id ID, token entitystore.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.ClearPending(id, token)
}

// applyPush must only be called with validated events
func (m *Model[ID, E]) applyPush(event domain.PushEvent[ID, E]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Kind {
	case domain.EventCreate, domain.EventUpdate:
		entity := *event.Entity
		m.store.Upsert(event.ID, entity)
		m.cache.Put(event.ID, entity)
		m.store.Overtake(event.ID)
		if event.Version != nil {
			if current, ok := m.eventVersions[event.ID]; !ok || *event.Version > current {
				m.eventVersions[event.ID] = *event.Version
			}
		}
	case domain.EventRemove:
		m.store.Remove(event.ID)
		m.cache.Invalidate(event.ID)
		delete(m.eventVersions, event.ID)
		m.store.Supersede(event.ID)
	default:
		panic(fmt.Sprintf("applyPush: unvalidated event kind %q", event.Kind))
	}
}

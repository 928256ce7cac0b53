// Package entitystore holds the canonical collection of entities for one model.
//
// A Store is a plain data structure. It performs no locking; the owning model serializes access.
package entitystore

import "slices"

// Token identifies one in-flight fetch
type Token uint64

type pendingRequest struct {
	token      Token
	superseded bool
	overtaken  bool
}

// Store keeps the entities of one model in insertion order, along with the in-flight fetch per id
type Store[ID comparable, E any] struct {
	ids      []ID
	entities map[ID]E
	pending  map[ID]pendingRequest
}

func New[ID comparable, E any]() *Store[ID, E] {
	return &Store[ID, E]{
		ids:      []ID{},
		entities: make(map[ID]E),
		pending:  make(map[ID]pendingRequest),
	}
}

// Upsert sets the entity for id, appending id to the ordering if it is new
func (s *Store[ID, E]) Upsert(id ID, entity E) {
	if _, ok := s.entities[id]; !ok {
		s.ids = append(s.ids, id)
	}
	s.entities[id] = entity
}

// Remove drops id from the ordering and the entities. Any pending request is left in place.
func (s *Store[ID, E]) Remove(id ID) {
	if _, ok := s.entities[id]; !ok {
		return
	}
	delete(s.entities, id)

	index := slices.Index(s.ids, id)
	if index == -1 {
		panic("entitystore: id present in entities but missing from ids")
	}
	s.ids = slices.Delete(s.ids, index, index+1)
}

func (s *Store[ID, E]) Get(id ID) (E, bool) {
	entity, ok := s.entities[id]
	return entity, ok
}

func (s *Store[ID, E]) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the known ids in insertion order
func (s *Store[ID, E]) IDs() []ID {
	return slices.Clone(s.ids)
}

// Entities returns a copy of the known entities in insertion order
func (s *Store[ID, E]) Entities() []E {
	entities := make([]E, 0, len(s.ids))
	for _, id := range s.ids {
		entities = append(entities, s.entities[id])
	}
	return entities
}

func (s *Store[ID, E]) MarkPending(id ID, token Token) {
	s.pending[id] = pendingRequest{token: token}
}

// ClearPending removes the pending marker for id if it still belongs to token.
// Returns false without changes if the marker is missing or belongs to another request.
func (s *Store[ID, E]) ClearPending(id ID, token Token) bool {
	current, ok := s.pending[id]
	if !ok || current.token != token {
		return false
	}
	delete(s.pending, id)
	return true
}

func (s *Store[ID, E]) PendingToken(id ID) (Token, bool) {
	current, ok := s.pending[id]
	return current.token, ok
}

// Supersede marks the pending request for id, if any, so its result is not committed.
// Returns true if there was a pending request.
func (s *Store[ID, E]) Supersede(id ID) bool {
	current, ok := s.pending[id]
	if !ok {
		return false
	}
	current.superseded = true
	s.pending[id] = current
	return true
}

// Overtake records that a newer write for id arrived while the pending request was in flight.
// Returns true if there was a pending request.
func (s *Store[ID, E]) Overtake(id ID) bool {
	current, ok := s.pending[id]
	if !ok {
		return false
	}
	current.overtaken = true
	s.pending[id] = current
	return true
}

// IsOvertaken reports whether a newer write for id arrived after token was issued
func (s *Store[ID, E]) IsOvertaken(id ID, token Token) bool {
	current, ok := s.pending[id]
	return ok && current.token == token && current.overtaken
}

// IsCurrent reports whether token still owns the pending marker for id and has not been superseded
func (s *Store[ID, E]) IsCurrent(id ID, token Token) bool {
	current, ok := s.pending[id]
	return ok && current.token == token && !current.superseded
}

func (s *Store[ID, E]) PendingCount() int {
	return len(s.pending)
}

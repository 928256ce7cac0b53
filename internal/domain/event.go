package domain

import "fmt"

type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventRemove EventKind = "remove"
)

func ParseEventKind(raw string) (EventKind, error) {
	switch EventKind(raw) {
	case EventCreate, EventUpdate, EventRemove:
		return EventKind(raw), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedPushEvent, raw)
}

// PushEvent is a single change notification for one entity of a model.
//
// Entity is only set for create and update events. Version is the version the notification
// carried, if any. It stands in for the entity version when the entity has none.
type PushEvent[ID comparable, E Entity[ID]] struct {
	Kind    EventKind
	ID      ID
	Entity  *E
	Version *int64
}

func (e PushEvent[ID, E]) Validate() error {
	switch e.Kind {
	case EventCreate, EventUpdate:
		if e.Entity == nil {
			return fmt.Errorf("%w: %s event for %v without entity", ErrMalformedPushEvent, e.Kind, e.ID)
		}
		if entityID := (*e.Entity).EntityID(); entityID != e.ID {
			return fmt.Errorf("%w: %s event for %v carries entity %v", ErrMalformedPushEvent, e.Kind, e.ID, entityID)
		}
		return nil
	case EventRemove:
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrMalformedPushEvent, e.Kind)
}

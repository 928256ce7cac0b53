package domain

import "errors"

var (
	ErrFetchFailed            = errors.New("fetch failed")
	ErrEntityNotFound         = errors.New("entity not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrMalformedPushEvent     = errors.New("malformed push event")
	ErrInvalidID              = errors.New("invalid id")

	// Exceeding the cache capacity is a broken invariant, not a runtime condition
	ErrCapacityViolation = errors.New("cache capacity violated")
)

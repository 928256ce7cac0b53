package domain

import (
	"encoding/json"
	"time"
)

type Channel struct {
	ID          int64
	LastUpdated time.Time

	// Payload is the remote representation, kept as-is
	Payload json.RawMessage
}

func (c Channel) EntityID() int64 {
	return c.ID
}

func (c Channel) EntityVersion() (int64, bool) {
	if c.LastUpdated.IsZero() {
		return 0, false
	}
	return c.LastUpdated.UnixNano(), true
}

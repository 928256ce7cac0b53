package domain

import "encoding/json"

// LocusBinSet carries no timestamp remotely, so it has no version.
type LocusBinSet struct {
	ID      int64
	Payload json.RawMessage
}

func (l LocusBinSet) EntityID() int64 {
	return l.ID
}

func (l LocusBinSet) EntityVersion() (int64, bool) {
	return 0, false
}

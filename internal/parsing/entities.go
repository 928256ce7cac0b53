package parsing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Amund211/entitysync/internal/domain"
)

// Decoder turns the remote representation of one entity into its domain type
type Decoder[E any] func(data []byte) (E, error)

type entityEnvelope struct {
	ID          json.RawMessage `json:"id"`
	LastUpdated *string         `json:"last_updated,omitempty"`
}

// Timestamps are either RFC 3339 or the server's str(datetime) rendering
var lastUpdatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
}

func parseLastUpdated(raw string) (time.Time, error) {
	for _, layout := range lastUpdatedLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized last_updated format: %q", raw)
}

func parseEnvelope(data []byte) (entityEnvelope, int64, error) {
	var envelope entityEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return entityEnvelope{}, 0, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	if envelope.ID == nil {
		return entityEnvelope{}, 0, fmt.Errorf("entity is missing id")
	}

	id, err := domain.ParseID(envelope.ID)
	if err != nil {
		return entityEnvelope{}, 0, fmt.Errorf("failed to parse entity id: %w", err)
	}

	return envelope, id, nil
}

func compact(data []byte) (json.RawMessage, error) {
	buf := &bytes.Buffer{}
	if err := json.Compact(buf, data); err != nil {
		return nil, fmt.Errorf("failed to compact entity: %w", err)
	}
	return buf.Bytes(), nil
}

func ParseChannel(data []byte) (domain.Channel, error) {
	envelope, id, err := parseEnvelope(data)
	if err != nil {
		return domain.Channel{}, err
	}

	var lastUpdated time.Time
	if envelope.LastUpdated != nil && *envelope.LastUpdated != "" {
		lastUpdated, err = parseLastUpdated(*envelope.LastUpdated)
		if err != nil {
			return domain.Channel{}, err
		}
	}

	payload, err := compact(data)
	if err != nil {
		return domain.Channel{}, err
	}

	return domain.Channel{
		ID:          id,
		LastUpdated: lastUpdated,
		Payload:     payload,
	}, nil
}

func ParseLocusBinSet(data []byte) (domain.LocusBinSet, error) {
	_, id, err := parseEnvelope(data)
	if err != nil {
		return domain.LocusBinSet{}, err
	}

	payload, err := compact(data)
	if err != nil {
		return domain.LocusBinSet{}, err
	}

	return domain.LocusBinSet{
		ID:      id,
		Payload: payload,
	}, nil
}

package ports

import (
	"encoding/json"
	"time"

	"github.com/Amund211/entitysync/internal/app"
	"github.com/Amund211/entitysync/internal/domain"
)

type channelResponse struct {
	ID          int64           `json:"id"`
	LastUpdated *time.Time      `json:"lastUpdated"`
	Payload     json.RawMessage `json:"payload"`
}

type locusBinSetResponse struct {
	ID      int64           `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type idsResponse struct {
	IDs []int64 `json:"ids"`
}

type statsResponse struct {
	Stored   int `json:"stored"`
	Cached   int `json:"cached"`
	Capacity int `json:"capacity"`
	Pending  int `json:"pending"`
}

func ChannelToResponse(channel domain.Channel) any {
	var lastUpdated *time.Time
	if !channel.LastUpdated.IsZero() {
		lastUpdated = &channel.LastUpdated
	}
	return channelResponse{
		ID:          channel.ID,
		LastUpdated: lastUpdated,
		Payload:     payloadOrNull(channel.Payload),
	}
}

func LocusBinSetToResponse(locusBinSet domain.LocusBinSet) any {
	return locusBinSetResponse{
		ID:      locusBinSet.ID,
		Payload: payloadOrNull(locusBinSet.Payload),
	}
}

func statsToResponse(stats app.ModelStats) statsResponse {
	return statsResponse{
		Stored:   stats.Stored,
		Cached:   stats.Cached,
		Capacity: stats.Capacity,
		Pending:  stats.Pending,
	}
}

func payloadOrNull(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("null")
	}
	return payload
}

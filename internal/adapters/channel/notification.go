package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Amund211/entitysync/internal/domain"
)

const channelSuffix = "_changes"

// Notification is the wire format of a single push notification
type Notification struct {
	Model   string          `json:"model"`
	Kind    string          `json:"kind"`
	ID      json.RawMessage `json:"id"`
	Version *int64          `json:"version,omitempty"`
	Entity  json.RawMessage `json:"entity,omitempty"`
}

func DecodeNotification(payload []byte) (Notification, error) {
	var notification Notification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return Notification{}, fmt.Errorf("%w: failed to unmarshal notification: %w", domain.ErrMalformedPushEvent, err)
	}
	if notification.Kind == "" {
		return Notification{}, fmt.Errorf("%w: notification is missing kind", domain.ErrMalformedPushEvent)
	}
	if notification.ID == nil {
		return Notification{}, fmt.Errorf("%w: notification is missing id", domain.ErrMalformedPushEvent)
	}
	return notification, nil
}

// ChannelName is the postgres notification channel carrying changes for model
func ChannelName(model string) string {
	return model + channelSuffix
}

func ModelFromChannelName(channel string) (string, bool) {
	model, ok := strings.CutSuffix(channel, channelSuffix)
	if !ok || model == "" {
		return "", false
	}
	return model, true
}

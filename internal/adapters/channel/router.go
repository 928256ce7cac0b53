package channel

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/parsing"
	"github.com/Amund211/entitysync/internal/reporting"
)

// Route forwards notifications for one model to that model's ordered event channel
type Route interface {
	Model() string
	dispatch(ctx context.Context, notification Notification) error
}

type typedRoute[E domain.Entity[int64]] struct {
	model  string
	decode parsing.Decoder[E]
	events chan<- domain.PushEvent[int64, E]
}

func NewRoute[E domain.Entity[int64]](model string, decode parsing.Decoder[E], events chan<- domain.PushEvent[int64, E]) Route {
	return &typedRoute[E]{
		model:  model,
		decode: decode,
		events: events,
	}
}

func (r *typedRoute[E]) Model() string {
	return r.model
}

func (r *typedRoute[E]) dispatch(ctx context.Context, notification Notification) error {
	kind, err := domain.ParseEventKind(notification.Kind)
	if err != nil {
		return err
	}

	id, err := domain.ParseID(notification.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPushEvent, err)
	}

	event := domain.PushEvent[int64, E]{Kind: kind, ID: id, Version: notification.Version}
	if kind != domain.EventRemove && len(notification.Entity) > 0 && string(notification.Entity) != "null" {
		entity, err := r.decode(notification.Entity)
		if err != nil {
			return fmt.Errorf("%w: failed to decode entity: %w", domain.ErrMalformedPushEvent, err)
		}
		event.Entity = &entity
	}

	// Blocks while the reconciler is behind so events are never reordered or lost
	select {
	case r.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Router maps model names to their routes. Each model is registered once.
type Router struct {
	routes map[string]Route
}

func NewRouter(routes ...Route) (*Router, error) {
	m := make(map[string]Route, len(routes))
	for _, route := range routes {
		model := route.Model()
		if _, exists := m[model]; exists {
			return nil, fmt.Errorf("duplicate route for model %s", model)
		}
		m[model] = route
	}
	return &Router{routes: m}, nil
}

// Models returns the registered model names in sorted order
func (r *Router) Models() []string {
	return slices.Sorted(maps.Keys(r.routes))
}

func (r *Router) Has(model string) bool {
	_, ok := r.routes[model]
	return ok
}

// Dispatch decodes payload and forwards it to the owning model.
//
// channelModel is the model implied by the transport, if any. Undeliverable notifications are
// reported and dropped. Returns true if the notification was forwarded.
func (r *Router) Dispatch(ctx context.Context, channelModel string, payload []byte) bool {
	logger := logging.FromContext(ctx)

	drop := func(err error, model string) bool {
		ctx := reporting.AddModelToContext(ctx, model)
		reporting.Report(ctx, fmt.Errorf("dropping notification: %w", err), map[string]string{
			"payload": string(payload),
		})
		return false
	}

	notification, err := DecodeNotification(payload)
	if err != nil {
		return drop(err, channelModel)
	}

	model := notification.Model
	switch {
	case model == "":
		model = channelModel
	case channelModel != "" && model != channelModel:
		return drop(fmt.Errorf("%w: notification for %s on channel for %s", domain.ErrMalformedPushEvent, model, channelModel), channelModel)
	}

	route, ok := r.routes[model]
	if !ok {
		return drop(fmt.Errorf("no route for model %q", model), model)
	}

	if err := route.dispatch(ctx, notification); err != nil {
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "Stopped dispatching notification", "model", model, "error", err.Error())
			return false
		}
		return drop(err, model)
	}
	return true
}

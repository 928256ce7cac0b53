package app

import (
	"context"
	"fmt"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/reporting"
)

// PushReconciler applies push events for one model in the order they arrive
type PushReconciler[ID comparable, E domain.Entity[ID]] struct {
	model *Model[ID, E]
}

func NewPushReconciler[ID comparable, E domain.Entity[ID]](model *Model[ID, E]) *PushReconciler[ID, E] {
	return &PushReconciler[ID, E]{model: model}
}

// Run applies events until ctx ends or events is closed
func (r *PushReconciler[ID, E]) Run(ctx context.Context, events <-chan domain.PushEvent[ID, E]) error {
	ctx = logging.WithModel(ctx, r.model.name)
	ctx = reporting.AddModelToContext(ctx, r.model.name)
	logger := logging.FromContext(ctx)

	logger.InfoContext(ctx, "Starting push reconciler")
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping push reconciler", "reason", ctx.Err().Error())
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				logger.InfoContext(ctx, "Push event stream closed")
				return nil
			}
			r.Apply(ctx, event)
		}
	}
}

// Apply applies a single event. Malformed events are reported and dropped.
func (r *PushReconciler[ID, E]) Apply(ctx context.Context, event domain.PushEvent[ID, E]) bool {
	attributes := modelAttributes(r.model.name)

	if err := event.Validate(); err != nil {
		metrics.droppedPushEvents.Add(ctx, 1, attributes)
		reporting.Report(ctx, fmt.Errorf("dropping push event for %s: %w", r.model.name, err), map[string]string{
			"id":   fmt.Sprint(event.ID),
			"kind": string(event.Kind),
		})
		return false
	}

	r.model.applyPush(event)
	metrics.appliedPushEvents.Add(ctx, 1, attributes)
	return true
}

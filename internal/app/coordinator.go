package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Ids requested together are fetched in subsets of this size
const fetchManySubsetSize = 384

// Maximum number of concurrent fetches per subset
const fetchManyConcurrency = 16

var tracer = otel.Tracer("entitysync/app")

type FetchGateway[ID comparable, E any] interface {
	// Returns domain.ErrEntityNotFound if the remote has no entity with the given id
	//
	// Returns domain.ErrTemporarilyUnavailable if the failure is believed to be intermittent. The call may be retried later.
	Fetch(ctx context.Context, id ID) (E, error)
}

// RequestCoordinator serves entities of one model, fetching them from the gateway on cache misses.
//
// Concurrent fetches for the same id share one gateway call and observe the same outcome.
// Use exactly one RequestCoordinator per Model.
type RequestCoordinator[ID comparable, E domain.Entity[ID]] struct {
	model        *Model[ID, E]
	gateway      FetchGateway[ID, E]
	fetchTimeout time.Duration
	inflight     singleflight.Group
}

func NewRequestCoordinator[ID comparable, E domain.Entity[ID]](model *Model[ID, E], gateway FetchGateway[ID, E], fetchTimeout time.Duration) *RequestCoordinator[ID, E] {
	return &RequestCoordinator[ID, E]{
		model:        model,
		gateway:      gateway,
		fetchTimeout: fetchTimeout,
	}
}

func (c *RequestCoordinator[ID, E]) Model() *Model[ID, E] {
	return c.model
}

// Fetch returns the entity for id, from the cache if possible.
//
// Failures wrap domain.ErrFetchFailed and are not retried. If ctx ends before the fetch completes
// Fetch returns early, but the fetch itself runs to completion and is still committed.
func (c *RequestCoordinator[ID, E]) Fetch(ctx context.Context, id ID) (E, error) {
	ctx = logging.WithModel(ctx, c.model.name)
	attributes := modelAttributes(c.model.name)

	if entity, ok := c.model.peek(id); ok {
		metrics.cacheHits.Add(ctx, 1, attributes)
		return entity, nil
	}
	metrics.cacheMisses.Add(ctx, 1, attributes)

	resultCh := c.inflight.DoChan(fmt.Sprint(id), func() (any, error) {
		return c.fetchAndCommit(ctx, id)
	})

	select {
	case result := <-resultCh:
		if result.Shared {
			metrics.sharedFetches.Add(ctx, 1, attributes)
		}
		if result.Err != nil {
			var empty E
			return empty, result.Err
		}
		return result.Val.(E), nil
	case <-ctx.Done():
		var empty E
		return empty, fmt.Errorf("stopped waiting for %s %v: %w", c.model.name, id, ctx.Err())
	}
}

// fetchAndCommit runs at most once at a time per id
func (c *RequestCoordinator[ID, E]) fetchAndCommit(ctx context.Context, id ID) (E, error) {
	logger := logging.FromContext(ctx)
	attributes := modelAttributes(c.model.name)

	cached, token, hit := c.model.beginFetch(id)
	if hit {
		// Committed by a fetch that completed after our cache check
		return cached, nil
	}

	// The fetch is shared with other callers, and is not cancelled when this caller goes away
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	fetchCtx, span := tracer.Start(fetchCtx, "RequestCoordinator.fetch", trace.WithAttributes(
		attribute.String("model", c.model.name),
		attribute.String("id", fmt.Sprint(id)),
	))
	defer span.End()

	metrics.gatewayFetches.Add(ctx, 1, attributes)
	start := time.Now()
	fetched, err := c.gateway.Fetch(fetchCtx, id)
	metrics.gatewayFetchTiming.Record(ctx, time.Since(start).Seconds(), attributes)

	if err == nil && fetched.EntityID() != id {
		err = fmt.Errorf("gateway returned entity %v", fetched.EntityID())
	}

	if err != nil {
		c.model.abandonFetch(id, token)

		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		metrics.fetchFailures.Add(ctx, 1, attributes)
		// NOTE: FetchGateway implementations handle their own error reporting
		logger.WarnContext(ctx, "Fetch failed", "id", fmt.Sprint(id), "error", err.Error())

		var empty E
		return empty, fmt.Errorf("%w: %s %v: %w", domain.ErrFetchFailed, c.model.name, id, err)
	}

	if !c.model.commitFetch(id, token, fetched) {
		span.SetAttributes(attribute.Bool("discarded", true))
		metrics.discardedFetches.Add(ctx, 1, attributes)
		logger.InfoContext(ctx, "Discarded stale fetch result", "id", fmt.Sprint(id))
	}

	// Waiters get the fetched entity even if it was discarded
	return fetched, nil
}

// FetchMany fetches all ids and returns the entities in the same order.
// Returns the first failure encountered.
func (c *RequestCoordinator[ID, E]) FetchMany(ctx context.Context, ids []ID) ([]E, error) {
	entities := make([]E, len(ids))

	for start := 0; start < len(ids); start += fetchManySubsetSize {
		end := min(start+fetchManySubsetSize, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fetchManyConcurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				entity, err := c.Fetch(gctx, ids[i])
				if err != nil {
					return err
				}
				entities[i] = entity
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return entities, nil
}

// Peek returns the cached entity for id without any I/O
func (c *RequestCoordinator[ID, E]) Peek(id ID) (E, bool) {
	return c.model.peek(id)
}

// Invalidate drops id from the cache. The store keeps its entity.
func (c *RequestCoordinator[ID, E]) Invalidate(id ID) {
	c.model.invalidate(id)
}

// IDs returns the ids of all known entities in insertion order
func (c *RequestCoordinator[ID, E]) IDs() []ID {
	return c.model.ids()
}

// Entities returns all known entities in insertion order
func (c *RequestCoordinator[ID, E]) Entities() []E {
	return c.model.entities()
}

func (c *RequestCoordinator[ID, E]) Stats() ModelStats {
	return c.model.Stats()
}

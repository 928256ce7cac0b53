package app

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type appMetricsCollection struct {
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	cacheEvictions     metric.Int64Counter
	gatewayFetches     metric.Int64Counter
	fetchFailures      metric.Int64Counter
	sharedFetches      metric.Int64Counter
	discardedFetches   metric.Int64Counter
	appliedPushEvents  metric.Int64Counter
	droppedPushEvents  metric.Int64Counter
	gatewayFetchTiming metric.Float64Histogram
}

var metrics appMetricsCollection

func init() {
	const name = "entitysync/app"
	meter := otel.Meter(name)

	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			panic(fmt.Errorf("failed to create %s metric: %w", name, err))
		}
		return c
	}

	gatewayFetchTiming, err := meter.Float64Histogram(
		"app/gateway_fetch_duration_seconds",
		metric.WithDescription("Duration of detail fetches against the remote service"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create gateway fetch duration metric: %w", err))
	}

	metrics = appMetricsCollection{
		cacheHits:          counter("app/cache_hits", "Fetches served from the entity cache"),
		cacheMisses:        counter("app/cache_misses", "Fetches not served from the entity cache"),
		cacheEvictions:     counter("app/cache_evictions", "Entities evicted from the cache due to capacity"),
		gatewayFetches:     counter("app/gateway_fetches", "Detail fetches issued to the remote service"),
		fetchFailures:      counter("app/fetch_failures", "Detail fetches that failed"),
		sharedFetches:      counter("app/shared_fetches", "Fetch calls that shared the outcome of another in-flight fetch"),
		discardedFetches:   counter("app/discarded_fetches", "Successful fetches not committed due to a newer push"),
		appliedPushEvents:  counter("app/push_events_applied", "Push events applied to the store"),
		droppedPushEvents:  counter("app/push_events_dropped", "Malformed push events dropped"),
		gatewayFetchTiming: gatewayFetchTiming,
	}
}

func modelAttributes(model string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("model", model))
}

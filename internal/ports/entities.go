package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Amund211/entitysync/internal/app"
	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/ratelimiting"
	"github.com/Amund211/entitysync/internal/reporting"
)

// Maximum size of a batch request body
const maxBatchBodySize = 1 << 20

// EntityService is the view of one model exposed over HTTP
type EntityService[E any] interface {
	Fetch(ctx context.Context, id int64) (E, error)
	FetchMany(ctx context.Context, ids []int64) ([]E, error)
	Peek(id int64) (E, bool)
	Invalidate(id int64)
	IDs() []int64
	Entities() []E
	Stats() app.ModelStats
}

// Converts an entity to its response representation
type ResponseConverter[E any] func(entity E) any

func newIPRateLimiter() ratelimiting.RequestRateLimiter {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(50),
		ratelimiting.BurstSize(500),
	)
	return ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc)
}

// RegisterModel mounts all entity ports for model on mux under /v1/<model>
func RegisterModel[E any](
	mux *http.ServeMux,
	model string,
	service EntityService[E],
	toResponse ResponseConverter[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) {
	logger := rootLogger.With("model", model)
	ipRateLimiter := newIPRateLimiter()

	mux.HandleFunc(
		fmt.Sprintf("GET /v1/%s", model),
		MakeListIDsHandler(model, service, logger.With("port", "ids"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("GET /v1/%s/entities", model),
		MakeListEntitiesHandler(model, service, toResponse, logger.With("port", "entities"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("GET /v1/%s/stats", model),
		MakeStatsHandler(model, service, logger.With("port", "stats"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("GET /v1/%s/{id}", model),
		MakeGetEntityHandler(model, service, toResponse, logger.With("port", "get"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("GET /v1/%s/peek/{id}", model),
		MakePeekEntityHandler(model, service, toResponse, logger.With("port", "peek"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("POST /v1/%s/batch", model),
		MakeGetEntitiesHandler(model, service, toResponse, logger.With("port", "batch"), sentryMiddleware, ipRateLimiter),
	)
	mux.HandleFunc(
		fmt.Sprintf("POST /v1/%s/invalidate/{id}", model),
		MakeInvalidateEntityHandler(model, service, logger.With("port", "invalidate"), sentryMiddleware, ipRateLimiter),
	)
}

func MakeGetEntityHandler[E any](
	model string,
	service EntityService[E],
	toResponse ResponseConverter[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("get", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, id, ok := parseIDFromPath(w, r)
		if !ok {
			return
		}

		entity, err := service.Fetch(ctx, id)
		if err != nil {
			writeFetchError(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, toResponse(entity))
	}

	return middleware(handler)
}

func MakeGetEntitiesHandler[E any](
	model string,
	service EntityService[E],
	toResponse ResponseConverter[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("batch", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBodySize+1))
		if err != nil {
			logging.FromContext(ctx).Info("Failed to read request body", "error", err.Error())
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		if len(body) > maxBatchBodySize {
			statusCode := http.StatusRequestEntityTooLarge
			logging.FromContext(ctx).Info("Request body too large. Returning error", "statusCode", statusCode)
			http.Error(w, "Request body too large", statusCode)
			return
		}

		ids, err := domain.ParseIDs(body)
		if err != nil {
			statusCode := http.StatusBadRequest
			logging.FromContext(ctx).Info("Invalid ids. Returning error", "statusCode", statusCode, "reason", "invalid ids", "error", err.Error())
			http.Error(w, "Invalid ids", statusCode)
			return
		}
		ctx = logging.AddMetaToContext(ctx, slog.Int("idCount", len(ids)))

		entities, err := service.FetchMany(ctx, ids)
		if err != nil {
			writeFetchError(ctx, w, err)
			return
		}

		response := make([]any, 0, len(entities))
		for _, entity := range entities {
			response = append(response, toResponse(entity))
		}
		writeJSONResponse(ctx, w, response)
	}

	return middleware(handler)
}

func MakePeekEntityHandler[E any](
	model string,
	service EntityService[E],
	toResponse ResponseConverter[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("peek", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, id, ok := parseIDFromPath(w, r)
		if !ok {
			return
		}

		entity, ok := service.Peek(id)
		if !ok {
			http.Error(w, "Not cached", http.StatusNotFound)
			return
		}

		writeJSONResponse(ctx, w, toResponse(entity))
	}

	return middleware(handler)
}

func MakeInvalidateEntityHandler[E any](
	model string,
	service EntityService[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("invalidate", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, id, ok := parseIDFromPath(w, r)
		if !ok {
			return
		}

		service.Invalidate(id)
		logging.FromContext(ctx).Info("Invalidated cache entry")

		w.WriteHeader(http.StatusNoContent)
	}

	return middleware(handler)
}

func MakeListIDsHandler[E any](
	model string,
	service EntityService[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("ids", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(r.Context(), w, idsResponse{IDs: service.IDs()})
	}

	return middleware(handler)
}

// MakeListEntitiesHandler lists every stored entity in store order without fetching
func MakeListEntitiesHandler[E any](
	model string,
	service EntityService[E],
	toResponse ResponseConverter[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("entities", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		entities := service.Entities()
		response := make([]any, 0, len(entities))
		for _, entity := range entities {
			response = append(response, toResponse(entity))
		}
		writeJSONResponse(r.Context(), w, response)
	}

	return middleware(handler)
}

func MakeStatsHandler[E any](
	model string,
	service EntityService[E],
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) http.HandlerFunc {
	middleware := buildEntityMiddleware("stats", model, rootLogger, sentryMiddleware, ipRateLimiter)

	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(r.Context(), w, statsToResponse(service.Stats()))
	}

	return middleware(handler)
}

func parseIDFromPath(w http.ResponseWriter, r *http.Request) (context.Context, int64, bool) {
	ctx := r.Context()

	rawID := r.PathValue("id")
	ctx = reporting.AddExtrasToContext(ctx, map[string]string{"rawID": rawID})

	id, err := domain.ParseIDString(rawID)
	if err != nil {
		statusCode := http.StatusBadRequest
		logging.FromContext(ctx).Info("Invalid id. Returning error", "statusCode", statusCode, "reason", "invalid id")
		http.Error(w, "Invalid id", statusCode)
		return ctx, 0, false
	}

	return ctx, id, true
}

func writeFetchError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		logger.Info("Entity not found", "error", err.Error())
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		logger.Warn("Entity temporarily unavailable", "error", err.Error())
		http.Error(w, "Temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Info("Request ended before the fetch completed", "error", err.Error())
		http.Error(w, "Request cancelled", http.StatusGatewayTimeout)
	default:
		logger.Error("Error fetching entity", "error", err.Error())
		http.Error(w, "Failed to fetch entity", http.StatusBadGateway)
	}
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		err = fmt.Errorf("failed to marshal response: %w", err)
		reporting.Report(ctx, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(data); err != nil {
		logging.FromContext(ctx).Error("Failed to write response", "error", err)
	}
}

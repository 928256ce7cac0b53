package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/ratelimiting"
	"github.com/Amund211/entitysync/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

func newModelMetaMiddleware(model string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithModel(r.Context(), model)
			ctx = reporting.AddModelToContext(ctx, model)
			next(w, r.WithContext(ctx))
		}
	}
}

// buildEntityMiddleware is the middleware stack shared by all entity ports
func buildEntityMiddleware(
	operation string,
	model string,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	ipRateLimiter ratelimiting.RequestRateLimiter,
) func(http.HandlerFunc) http.HandlerFunc {
	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		statusCode := http.StatusTooManyRequests

		logging.FromContext(r.Context()).Info("Rate limit exceeded", "statusCode", statusCode, "reason", "ratelimit exceeded", "key", ipRateLimiter.KeyFor(r))

		http.Error(w, "Rate limit exceeded", statusCode)
	}

	return ComposeMiddlewares(
		buildMetricsMiddleware(operation, model),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(operation),
		newModelMetaMiddleware(model),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)
}

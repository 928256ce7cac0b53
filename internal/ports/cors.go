package ports

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS lets browser clients served from allowedOrigins call the entity ports.
// Without any allowed origins the handler is returned unchanged.
func WithCORS(handler http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return handler
	}

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(handler)
}

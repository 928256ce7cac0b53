package ports_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/entitysync/internal/ports"
	"github.com/stretchr/testify/require"
)

func TestWithCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(handler http.Handler, method string, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/v1/channel/1", nil)
		req.Header.Set("Origin", origin)
		if method == http.MethodOptions {
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("allowed origin", func(t *testing.T) {
		t.Parallel()

		handler := ports.WithCORS(next, []string{"http://localhost:3000"})
		w := request(handler, http.MethodGet, "http://localhost:3000")

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		t.Parallel()

		handler := ports.WithCORS(next, []string{"http://localhost:3000"})
		w := request(handler, http.MethodGet, "https://elsewhere.example.com")

		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		t.Parallel()

		handler := ports.WithCORS(next, []string{"http://localhost:3000"})
		w := request(handler, http.MethodOptions, "http://localhost:3000")

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disabled without origins", func(t *testing.T) {
		t.Parallel()

		handler := ports.WithCORS(next, nil)
		w := request(handler, http.MethodGet, "http://localhost:3000")

		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Amund211/entitysync/internal/config"
	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/parsing"
	"github.com/Amund211/entitysync/internal/ratelimiting"
	"github.com/Amund211/entitysync/internal/reporting"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const UserAgent = "entitysync/0.1.0 (+https://github.com/Amund211/entitysync)"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway fetches single entities of one model from the remote service
type Gateway[E any] interface {
	Fetch(ctx context.Context, id int64) (E, error)
}

// NewInstrumentedHTTPClient returns a client whose requests are traced and measured
func NewInstrumentedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

type httpGateway[E any] struct {
	httpClient HttpClient
	baseURL    string
	model      string
	decode     parsing.Decoder[E]
	limiter    ratelimiting.RateLimiter
}

func NewHTTPGateway[E any](httpClient HttpClient, baseURL string, model string, decode parsing.Decoder[E], limiter ratelimiting.RateLimiter) Gateway[E] {
	return &httpGateway[E]{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		decode:     decode,
		limiter:    limiter,
	}
}

func (g *httpGateway[E]) Fetch(ctx context.Context, id int64) (E, error) {
	var empty E
	ctx = reporting.AddModelToContext(ctx, g.model)
	logger := logging.FromContext(ctx)

	if !g.limiter.Consume(ratelimiting.ModelKey(g.model)) {
		return empty, fmt.Errorf("%w: local rate limit exceeded for %s", domain.ErrTemporarilyUnavailable, g.model)
	}

	url := fmt.Sprintf("%s/%s/%d", g.baseURL, g.model, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return empty, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return empty, fmt.Errorf("%w: request for %s %d did not complete: %w", domain.ErrTemporarilyUnavailable, g.model, id, err)
		}
		err := fmt.Errorf("failed to send request: %w", err)
		reporting.Report(ctx, err)
		return empty, err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return empty, err
	}
	logger.InfoContext(ctx, "gateway request completed", "url", url, "status", resp.StatusCode, "duration", time.Since(start).String())

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return empty, fmt.Errorf("%w: %s %d", domain.ErrEntityNotFound, g.model, id)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return empty, fmt.Errorf("%w: remote responded with status %d", domain.ErrTemporarilyUnavailable, resp.StatusCode)
	default:
		err := fmt.Errorf("unexpected status code %d", resp.StatusCode)
		reporting.Report(ctx, err, map[string]string{
			"statusCode": fmt.Sprint(resp.StatusCode),
			"data":       string(data),
		})
		return empty, err
	}

	entity, err := g.decode(data)
	if err != nil {
		err := fmt.Errorf("failed to decode %s %d: %w", g.model, id, err)
		reporting.Report(ctx, err, map[string]string{
			"data": string(data),
		})
		return empty, err
	}

	return entity, nil
}

// mockedGateway serves made-up entities stamped with the current time
type mockedGateway[E any] struct {
	decode parsing.Decoder[E]
	clock  clockwork.Clock
}

func (g *mockedGateway[E]) Fetch(ctx context.Context, id int64) (E, error) {
	lastUpdated := g.clock.Now().UTC().Format(time.RFC3339Nano)
	return g.decode(fmt.Appendf(nil, `{"id":%d,"last_updated":"%s","mocked":true}`, id, lastUpdated))
}

func NewGatewayOrMock[E any](config config.Config, httpClient HttpClient, model string, decode parsing.Decoder[E], limiter ratelimiting.RateLimiter) (Gateway[E], error) {
	if config.GatewayURL() != "" {
		return NewHTTPGateway(httpClient, config.GatewayURL(), model, decode, limiter), nil
	}
	if config.IsDevelopment() {
		return &mockedGateway[E]{decode: decode, clock: clockwork.NewRealClock()}, nil
	}
	return nil, fmt.Errorf("missing gateway url in non-development environment")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/entitysync/internal/adapters/channel"
	"github.com/Amund211/entitysync/internal/adapters/gateway"
	"github.com/Amund211/entitysync/internal/app"
	"github.com/Amund211/entitysync/internal/config"
	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/parsing"
	"github.com/Amund211/entitysync/internal/ports"
	"github.com/Amund211/entitysync/internal/ratelimiting"
	"github.com/Amund211/entitysync/internal/reporting"
	"github.com/Amund211/entitysync/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback"
)

// Push events buffered per model before the transport waits for the reconciler
const pushBufferSize = 1024

type model[E domain.Entity[int64]] struct {
	coordinator *app.RequestCoordinator[int64, E]
	reconciler  *app.PushReconciler[int64, E]
	events      chan domain.PushEvent[int64, E]
}

func buildModel[E domain.Entity[int64]](
	config config.Config,
	httpClient gateway.HttpClient,
	fetchLimiter ratelimiting.RateLimiter,
	name string,
	decode parsing.Decoder[E],
) (model[E], error) {
	entityGateway, err := gateway.NewGatewayOrMock(config, httpClient, name, decode, fetchLimiter)
	if err != nil {
		return model[E]{}, fmt.Errorf("failed to initialize gateway for %s: %w", name, err)
	}

	m, err := app.NewModel[int64, E](name, config.CacheCapacity())
	if err != nil {
		return model[E]{}, err
	}

	return model[E]{
		coordinator: app.NewRequestCoordinator(m, entityGateway, config.FetchTimeout()),
		reconciler:  app.NewPushReconciler(m),
		events:      make(chan domain.PushEvent[int64, E], pushBufferSize),
	}, nil
}

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	if config.OTelEnabled() {
		shutdown, err := telemetry.SetupOTelSDK(ctx, "entitysync", instanceID)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := gateway.NewInstrumentedHTTPClient(config.FetchTimeout())
	fetchLimiter, stopFetchLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(config.FetchRate()),
		ratelimiting.BurstSize(config.FetchBurst()),
	)
	defer stopFetchLimiter()

	channels, err := buildModel(config, httpClient, fetchLimiter, domain.ModelChannel, parsing.ParseChannel)
	if err != nil {
		fail("Failed to initialize model", "model", domain.ModelChannel, "error", err.Error())
	}
	locusBinSets, err := buildModel(config, httpClient, fetchLimiter, domain.ModelLocusBinSet, parsing.ParseLocusBinSet)
	if err != nil {
		fail("Failed to initialize model", "model", domain.ModelLocusBinSet, "error", err.Error())
	}
	logger.Info("Initialized models")

	router, err := channel.NewRouter(
		channel.NewRoute(domain.ModelChannel, parsing.ParseChannel, channels.events),
		channel.NewRoute(domain.ModelLocusBinSet, parsing.ParseLocusBinSet, locusBinSets.events),
	)
	if err != nil {
		fail("Failed to initialize push router", "error", err.Error())
	}

	mux := http.NewServeMux()
	ports.RegisterModel(mux, domain.ModelChannel, channels.coordinator, ports.ChannelToResponse, logger.With("component", "ports"), sentryMiddleware)
	ports.RegisterModel(mux, domain.ModelLocusBinSet, locusBinSets.coordinator, ports.LocusBinSetToResponse, logger.With("component", "ports"), sentryMiddleware)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           ports.WithCORS(mux, config.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return channels.reconciler.Run(gctx, channels.events)
	})
	g.Go(func() error {
		return locusBinSets.reconciler.Run(gctx, locusBinSets.events)
	})

	if config.PushDSN() != "" {
		transport, err := channel.NewPostgresTransport(config.PushDSN(), router, logger.With("component", "push"))
		if err != nil {
			fail("Failed to initialize push transport", "error", err.Error())
		}
		defer transport.Close()

		g.Go(func() error {
			return transport.Run(gctx)
		})
		logger.Info("Listening for push notifications", "models", router.Models())
	} else {
		logger.Warn("No push DSN configured, push updates are disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("Init complete", "port", config.Port())
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("Server shutdown")
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fail("Exiting", "error", err.Error())
	}
}

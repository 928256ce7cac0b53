package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/reporting"
	"github.com/lib/pq"
)

const (
	minReconnectInterval = 1 * time.Second
	maxReconnectInterval = 1 * time.Minute
	pingInterval         = 90 * time.Second
)

type notificationListener interface {
	NotificationChannel() <-chan *pq.Notification
	Listen(channel string) error
	Ping() error
	Close() error
}

// PostgresTransport receives push notifications through postgres LISTEN/NOTIFY.
// Each registered model listens on its own channel, see ChannelName.
type PostgresTransport struct {
	listener notificationListener
	router   *Router
}

func NewPostgresTransport(dsn string, router *Router, logger *slog.Logger) (*PostgresTransport, error) {
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(event pq.ListenerEventType, err error) {
		switch event {
		case pq.ListenerEventConnected:
			logger.Info("Push listener connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("Push listener disconnected", "error", errorString(err))
		case pq.ListenerEventReconnected:
			logger.Info("Push listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("Push listener connection attempt failed", "error", errorString(err))
		}
	})

	return newPostgresTransport(listener, router)
}

func newPostgresTransport(listener notificationListener, router *Router) (*PostgresTransport, error) {
	for _, model := range router.Models() {
		if err := listener.Listen(ChannelName(model)); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to listen for %s: %w", model, err), listener.Close())
		}
	}

	return &PostgresTransport{
		listener: listener,
		router:   router,
	}, nil
}

// Run forwards notifications to the router until ctx ends or the listener is closed
func (t *PostgresTransport) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	notifications := t.listener.NotificationChannel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			go func() {
				if err := t.listener.Ping(); err != nil {
					logger.WarnContext(ctx, "Push listener ping failed", "error", err.Error())
				}
			}()
		case notification, ok := <-notifications:
			if !ok {
				return fmt.Errorf("push listener closed")
			}
			if notification == nil {
				// Sent after a reconnect. Anything published while disconnected is lost.
				reporting.Report(ctx, fmt.Errorf("push listener reconnected, notifications may have been missed"))
				continue
			}

			model, ok := ModelFromChannelName(notification.Channel)
			if !ok {
				logger.WarnContext(ctx, "Notification on unexpected channel", "channel", notification.Channel)
				continue
			}
			t.router.Dispatch(ctx, model, []byte(notification.Extra))
		}
	}
}

func (t *PostgresTransport) Close() error {
	return t.listener.Close()
}

func errorString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

package channel

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Postgres rejects NOTIFY payloads of 8000 bytes or more
const maxNotificationPayloadSize = 7999

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresPublisher sends push notifications through postgres NOTIFY.
// The remote service normally publishes these itself; this is for operators and tests.
type PostgresPublisher struct {
	db execer
}

func NewPostgresPublisher(dsn string) (*PostgresPublisher, *sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &PostgresPublisher{db: db}, db, nil
}

func (p *PostgresPublisher) Publish(ctx context.Context, notification Notification) error {
	if notification.Model == "" {
		return fmt.Errorf("notification is missing model")
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if len(payload) > maxNotificationPayloadSize {
		return fmt.Errorf("notification payload is %d bytes, limit is %d", len(payload), maxNotificationPayloadSize)
	}

	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", ChannelName(notification.Model), string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", ChannelName(notification.Model), err)
	}
	return nil
}

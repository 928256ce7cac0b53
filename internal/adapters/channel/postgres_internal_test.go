package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/parsing"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedListener struct {
	mu            sync.Mutex
	listened      []string
	listenErr     error
	closed        bool
	notifications chan *pq.Notification
}

func (m *mockedListener) NotificationChannel() <-chan *pq.Notification {
	return m.notifications
}

func (m *mockedListener) Listen(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listened = append(m.listened, channel)
	return m.listenErr
}

func (m *mockedListener) Ping() error {
	return nil
}

func (m *mockedListener) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newMockedListener() *mockedListener {
	return &mockedListener{notifications: make(chan *pq.Notification, 10)}
}

func TestPostgresTransport(t *testing.T) {
	t.Parallel()

	newRouter := func(t *testing.T) (*Router, chan domain.PushEvent[int64, domain.Channel]) {
		events := make(chan domain.PushEvent[int64, domain.Channel], 10)
		router, err := NewRouter(
			NewRoute(domain.ModelChannel, parsing.ParseChannel, events),
			NewRoute(domain.ModelLocusBinSet, parsing.ParseLocusBinSet, make(chan domain.PushEvent[int64, domain.LocusBinSet], 10)),
		)
		require.NoError(t, err)
		return router, events
	}

	t.Run("listens on one channel per model", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t)
		listener := newMockedListener()

		_, err := newPostgresTransport(listener, router)
		require.NoError(t, err)
		require.Equal(t, []string{"channel_changes", "locus_bin_set_changes"}, listener.listened)
	})

	t.Run("listen failure closes the listener", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t)
		listener := newMockedListener()
		listener.listenErr = assert.AnError

		_, err := newPostgresTransport(listener, router)
		require.ErrorIs(t, err, assert.AnError)
		require.True(t, listener.closed)
	})

	t.Run("forwards notifications until the listener closes", func(t *testing.T) {
		t.Parallel()

		router, events := newRouter(t)
		listener := newMockedListener()
		transport, err := newPostgresTransport(listener, router)
		require.NoError(t, err)

		listener.notifications <- &pq.Notification{Channel: "channel_changes", Extra: `{"kind": "create", "id": 1, "entity": {"id": 1}}`}
		// Reconnect marker
		listener.notifications <- nil
		listener.notifications <- &pq.Notification{Channel: "unrelated", Extra: `{"kind": "remove", "id": 1}`}
		listener.notifications <- &pq.Notification{Channel: "channel_changes", Extra: `{"kind": "remove", "id": 1}`}
		close(listener.notifications)

		err = transport.Run(t.Context())
		require.Error(t, err)

		require.Len(t, events, 2)
		require.Equal(t, domain.EventCreate, (<-events).Kind)
		require.Equal(t, domain.PushEvent[int64, domain.Channel]{Kind: domain.EventRemove, ID: 1}, <-events)

		require.NoError(t, transport.Close())
		require.True(t, listener.closed)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		t.Parallel()

		router, _ := newRouter(t)
		listener := newMockedListener()
		transport, err := newPostgresTransport(listener, router)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		errCh := make(chan error, 1)
		go func() {
			errCh <- transport.Run(ctx)
		}()
		cancel()

		select {
		case err := <-errCh:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("transport did not stop")
		}
	})
}

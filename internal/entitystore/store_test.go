package entitystore_test

import (
	"testing"

	"github.com/Amund211/entitysync/internal/entitystore"
	"github.com/stretchr/testify/require"
)

func requireConsistent[E any](t *testing.T, s *entitystore.Store[int, E]) {
	t.Helper()

	ids := s.IDs()
	require.Len(t, s.Entities(), len(ids))
	require.Equal(t, len(ids), s.Len())

	seen := map[int]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "id %d appears more than once", id)
		seen[id] = true

		_, ok := s.Get(id)
		require.True(t, ok)
	}
}

func TestStoreUpsertAndRemove(t *testing.T) {
	t.Parallel()

	t.Run("upsert keeps insertion order", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.Upsert(3, "C")
		s.Upsert(1, "A")
		s.Upsert(2, "B")
		s.Upsert(1, "A2")

		require.Equal(t, []int{3, 1, 2}, s.IDs())
		require.Equal(t, []string{"C", "A2", "B"}, s.Entities())
		requireConsistent(t, s)
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.Upsert(1, "A")
		s.Upsert(2, "B")
		s.Upsert(3, "C")
		s.Remove(2)

		require.Equal(t, []int{1, 3}, s.IDs())
		_, ok := s.Get(2)
		require.False(t, ok)
		requireConsistent(t, s)

		s.Upsert(2, "B2")
		require.Equal(t, []int{1, 3, 2}, s.IDs())
		requireConsistent(t, s)
	})

	t.Run("remove missing id", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.Upsert(1, "A")
		s.Remove(5)

		require.Equal(t, []int{1}, s.IDs())
	})

	t.Run("remove leaves pending marker", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.Upsert(1, "A")
		s.MarkPending(1, 10)
		s.Remove(1)

		token, ok := s.PendingToken(1)
		require.True(t, ok)
		require.Equal(t, entitystore.Token(10), token)
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.Upsert(1, "A")

		ids := s.IDs()
		ids[0] = 100
		entities := s.Entities()
		entities[0] = "Z"

		require.Equal(t, []int{1}, s.IDs())
		require.Equal(t, []string{"A"}, s.Entities())
	})
}

func TestStorePending(t *testing.T) {
	t.Parallel()

	t.Run("mark and clear", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.MarkPending(1, 5)
		require.True(t, s.IsCurrent(1, 5))
		require.Equal(t, 1, s.PendingCount())

		require.True(t, s.ClearPending(1, 5))
		_, ok := s.PendingToken(1)
		require.False(t, ok)
		require.Equal(t, 0, s.PendingCount())
	})

	t.Run("stale token does not clear newer marker", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.MarkPending(1, 5)
		s.MarkPending(1, 6)

		require.False(t, s.ClearPending(1, 5))
		token, ok := s.PendingToken(1)
		require.True(t, ok)
		require.Equal(t, entitystore.Token(6), token)
		require.False(t, s.IsCurrent(1, 5))
		require.True(t, s.IsCurrent(1, 6))
	})

	t.Run("clear missing marker", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		require.False(t, s.ClearPending(1, 5))
	})

	t.Run("supersede", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		require.False(t, s.Supersede(1))

		s.MarkPending(1, 5)
		require.True(t, s.Supersede(1))
		require.False(t, s.IsCurrent(1, 5))

		// The marker stays until the owner clears it
		token, ok := s.PendingToken(1)
		require.True(t, ok)
		require.Equal(t, entitystore.Token(5), token)
		require.True(t, s.ClearPending(1, 5))
	})

	t.Run("pending does not create entities", func(t *testing.T) {
		t.Parallel()

		s := entitystore.New[int, string]()
		s.MarkPending(1, 5)

		require.Empty(t, s.IDs())
		_, ok := s.Get(1)
		require.False(t, ok)
	})
}

func TestStoreOvertake(t *testing.T) {
	t.Parallel()

	s := entitystore.New[int, string]()
	require.False(t, s.Overtake(1), "nothing pending")

	s.MarkPending(1, 5)
	require.False(t, s.IsOvertaken(1, 5))

	require.True(t, s.Overtake(1))
	require.True(t, s.IsOvertaken(1, 5))
	require.False(t, s.IsOvertaken(1, 6), "other tokens are not affected")

	// Overtaken requests are still current, only superseded ones are not
	require.True(t, s.IsCurrent(1, 5))

	// A new request starts fresh
	require.True(t, s.ClearPending(1, 5))
	s.MarkPending(1, 6)
	require.False(t, s.IsOvertaken(1, 6))
}

package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		expected []int64
	}{
		{raw: `1`, expected: []int64{1}},
		{raw: `"17"`, expected: []int64{17}},
		{raw: ` 42 `, expected: []int64{42}},
		{raw: `[1, 2, "3"]`, expected: []int64{1, 2, 3}},
		{raw: `[]`, expected: []int64{}},
	}
	for _, c := range cases {
		t.Run(c.raw, func(t *testing.T) {
			t.Parallel()

			ids, err := domain.ParseIDs(json.RawMessage(c.raw))
			require.NoError(t, err)
			require.Equal(t, c.expected, ids)
		})
	}

	for _, raw := range []string{``, `"abc"`, `1.5`, `{"id":1}`, `[1, "x"]`, `null`, `true`, `[[1]]`} {
		t.Run("invalid "+raw, func(t *testing.T) {
			t.Parallel()

			_, err := domain.ParseIDs(json.RawMessage(raw))
			require.ErrorIs(t, err, domain.ErrInvalidID)
		})
	}
}

func TestParseIDString(t *testing.T) {
	t.Parallel()

	id, err := domain.ParseIDString("123")
	require.NoError(t, err)
	require.Equal(t, int64(123), id)

	_, err = domain.ParseIDString("12a")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

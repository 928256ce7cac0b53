package main

import (
	"bytes"
	"testing"

	"github.com/Amund211/entitysync/internal/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestParseIDArgs(t *testing.T) {
	t.Parallel()

	ids, err := parseIDArgs([]string{"1", `"2"`, "[3, 4]"})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, ids)

	_, err = parseIDArgs([]string{"1", "abc"})
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListModels(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	require.NoError(t, listModels(cmd, nil))
	require.Equal(t, "channel\nlocus_bin_set\n", out.String())
}

func TestNotifyValidation(t *testing.T) {
	pushDSN = "postgres://localhost/unused"
	t.Cleanup(func() { pushDSN = "" })

	cmd := &cobra.Command{}

	require.ErrorContains(t, notify(cmd, []string{"user", "remove", "1"}), "unknown model")
	require.ErrorIs(t, notify(cmd, []string{"channel", "upsert", "1"}), domain.ErrMalformedPushEvent)
	require.ErrorIs(t, notify(cmd, []string{"channel", "remove", "abc"}), domain.ErrInvalidID)
	require.ErrorContains(t, notify(cmd, []string{"channel", "update", "1", "{"}), "not valid JSON")
}

func TestNotifyRequiresDSN(t *testing.T) {
	pushDSN = ""

	require.ErrorContains(t, notify(&cobra.Command{}, []string{"channel", "remove", "1"}), "no dsn")
}

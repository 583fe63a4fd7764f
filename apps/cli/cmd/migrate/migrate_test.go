package migrate

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, dsn DSNFunc, args ...string) error {
	t.Helper()
	cmd := Command(dsn)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestMissingDatabaseURL(t *testing.T) {
	t.Parallel()

	err := execute(t, func() (string, error) { return "", nil }, "status")
	require.ErrorContains(t, err, "DATABASE_URL is required")

	err = execute(t, nil, "up")
	require.ErrorContains(t, err, "--database-url is required")
}

func TestConfigErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New(`required environment variable "DATABASE_URL" is not set`)
	err := execute(t, func() (string, error) { return "", boom }, "status")
	require.ErrorIs(t, err, boom)
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	t.Parallel()

	called := false
	err := execute(t, func() (string, error) {
		called = true
		return "postgres://localhost/igreja", nil
	}, "down", "--steps", "0")
	require.ErrorContains(t, err, "--steps must be at least 1")
	require.False(t, called)
}

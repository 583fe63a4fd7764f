package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Run opens the App for cmd, calls fn and closes it.
func Run(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("close backend", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}

// NewPrinter honours the root --output flag.
func NewPrinter(cmd *cobra.Command) Printer {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		format = OutputTable
	}
	return Printer{Out: cmd.OutOrStdout(), Format: format}
}

type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported marks err as already shown to the user through the notifier.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// IsReported tells main not to print err a second time.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// ParseID parses a positional uuid argument.
func ParseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// Changed returns a pointer to v when the flag was set, nil otherwise.
func Changed[T any](cmd *cobra.Command, flag string, v T) *T {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}

// OpenImage opens a local image and guesses its content type from the extension.
func OpenImage(path string) (*os.File, string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		return nil, "", fmt.Errorf("unknown image type for %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return f, contentType, nil
}

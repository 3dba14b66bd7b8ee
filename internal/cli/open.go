package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/store"
)

// newFormatter builds the formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// databasePath returns --db, falling back to the environment default.
func databasePath(opts *RootOptions) string {
	if opts.Database != "" {
		return opts.Database
	}
	return defaultDatabase()
}

// createIndex opens the index named by --db, creating it at createVersion
// (zero means latest) when the file does not exist. Only init and add
// create indexes.
func createIndex(ctx context.Context, opts *RootOptions, formatter *OutputFormatter, createVersion store.SchemaVersion) (*index.Index, error) {
	path := databasePath(opts)
	formatter.VerboseLog("Opening index %s", path)
	ix, err := index.Open(ctx, path, index.Options{
		Logger:        slog.Default(),
		CreateVersion: createVersion,
	})
	if err != nil {
		return nil, outputError(formatter, ErrCodeOpenFailed, err)
	}
	return ix, nil
}

// openIndex opens the existing index named by --db. A missing file is a
// command error; a mistyped path must not yield a fresh empty index.
func openIndex(ctx context.Context, opts *RootOptions, formatter *OutputFormatter) (*index.Index, error) {
	path := databasePath(opts)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_ = formatter.Error(ErrCodeIndexNotFound, fmt.Sprintf("index not found: %s", path), &ErrorDetails{Database: path})
			return nil, WrapExitError(ExitCommandError, ErrCodeIndexNotFound, fmt.Errorf("%s: %w", path, errIndexNotFound))
		}
		return nil, outputError(formatter, ErrCodeOpenFailed, err)
	}
	return createIndex(ctx, opts, formatter, defaultCreateVersion)
}

// closeIndex closes ix, logging failures.
func closeIndex(ix *index.Index) {
	if err := ix.Close(); err != nil {
		slog.Error("error closing index", "error", err)
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgindex/internal/store"
)

// Version is the CLI build version, set with -ldflags at release time.
var Version = "dev"

// defaultCreateVersion creates new indexes at store.LatestVersion.
var defaultCreateVersion = store.SchemaVersion{}

// InitResult is the output of the init command.
type InitResult struct {
	Path          string `json:"path"`
	SchemaVersion string `json:"schema_version"`
	DatabaseID    string `json:"database_id"`
	Migrated      bool   `json:"migrated,omitempty"`
}

func (r InitResult) String() string {
	s := fmt.Sprintf("index %s at schema %s (id %s)", r.Path, r.SchemaVersion, r.DatabaseID)
	if r.Migrated {
		s += ", migrated"
	}
	return s
}

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	SchemaVersion string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade an index",
		Long: `Create an index at the requested schema version, or migrate an existing
index up to it.

Example:
  pkgindex init --db ./index.db
  pkgindex init --db ./old.db --schema-version 1.4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaVersion, "schema-version", "latest", "schema version (1.0, 1.4 or latest)")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	target, err := store.ParseSchemaVersion(opts.SchemaVersion)
	if err != nil {
		return outputError(formatter, ErrCodeInvalidArgument, err)
	}

	ix, err := createIndex(ctx, opts.RootOptions, formatter, target)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	result := InitResult{Path: opts.Database}
	if ix.Version().Less(target) {
		formatter.VerboseLog("Migrating %s from %s to %s", opts.Database, ix.Version(), target)
		if err := ix.Migrate(ctx, target); err != nil {
			return outputError(formatter, ErrCodeMigrationFailed, err)
		}
		result.Migrated = true
	}

	result.SchemaVersion = ix.Version().String()
	result.DatabaseID, err = ix.DatabaseID(ctx)
	if err != nil {
		return outputError(formatter, ErrCodeGeneric, err)
	}
	return formatter.Success(result)
}

// NewPackageCommand creates the package command.
func NewPackageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "package",
		Short: "Strip mutable structures before shipping the index",
		Long: `Drop the dependencies relation and its indexes, then compact the file.

Run this on a copy of the index that is about to be published. Dependency
queries against a packaged index return nothing.

Example:
  pkgindex package --db ./release/index.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(rootOpts, cmd)
		},
	}
}

func runPackage(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	ix, err := openIndex(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	if err := ix.PrepareForPackaging(ctx); err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	return formatter.Success(fmt.Sprintf("packaged %s", opts.Database))
}

// VersionResult is the output of the version command.
type VersionResult struct {
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
}

func (r VersionResult) String() string {
	return fmt.Sprintf("pkgindex %s (schema %s)", r.Version, r.SchemaVersion)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the CLI version and latest schema version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			return formatter.Success(VersionResult{
				Version:       Version,
				SchemaVersion: store.LatestVersion.String(),
			})
		},
	}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/manifest"
)

// ManifestResult reports one manifest written to the index.
type ManifestResult struct {
	Manifest string `json:"manifest"`
	Path     string `json:"path,omitempty"`
	Row      int64  `json:"row,omitempty"`
}

// AddResult is the output of the add command.
type AddResult struct {
	Added []ManifestResult `json:"added"`
}

func (r AddResult) String() string {
	var b strings.Builder
	for i, m := range r.Added {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "added %s (row %d)", m.Manifest, m.Row)
	}
	return b.String()
}

// UpdateResult is the output of the update command.
type UpdateResult struct {
	Manifest             string `json:"manifest"`
	DeclaresDependencies bool   `json:"declares_dependencies"`
}

func (r UpdateResult) String() string {
	if !r.DeclaresDependencies {
		return fmt.Sprintf("updated %s (no package dependencies)", r.Manifest)
	}
	return fmt.Sprintf("updated %s", r.Manifest)
}

// RemoveResult is the output of the remove command.
type RemoveResult struct {
	Manifest string `json:"manifest"`
}

func (r RemoveResult) String() string {
	return fmt.Sprintf("removed %s", r.Manifest)
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <manifest.yaml>...",
		Short: "Add manifests to the index",
		Long: `Add one or more manifests and their package dependencies to the index.

Files are added in order, each in its own savepoint. Every package a manifest
depends on must already be indexed, so list dependencies before dependents.

Example:
  pkgindex add runtime.yaml app.yaml
  pkgindex --db ./index.db add --format json app.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, args, cmd)
		},
	}
}

func runAdd(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	manifests := make([]*manifest.Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := manifest.Load(path)
		if err != nil {
			return outputError(formatter, ErrCodeManifestInvalid, err)
		}
		manifests = append(manifests, m)
	}

	ix, err := createIndex(ctx, opts, formatter, defaultCreateVersion)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	result := AddResult{Added: []ManifestResult{}}
	for i, m := range manifests {
		row, err := ix.AddManifest(ctx, m)
		if err != nil {
			return outputError(formatter, MapErrorToCode(err), err)
		}
		formatter.VerboseLog("Added %s from %s", m, paths[i])
		result.Added = append(result.Added, ManifestResult{
			Manifest: index.KeyOf(m).String(),
			Path:     paths[i],
			Row:      row,
		})
	}
	return formatter.Success(result)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <manifest.yaml>",
		Short: "Reconcile an indexed manifest's dependencies",
		Long: `Reconcile the stored dependencies of an indexed manifest with a new revision.

The manifest is matched by id, version and channel. Only the edges that
changed are written; unchanged edges keep their rows.

Example:
  pkgindex update app.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, args[0], cmd)
		},
	}
}

func runUpdate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	m, err := manifest.Load(path)
	if err != nil {
		return outputError(formatter, ErrCodeManifestInvalid, err)
	}

	ix, err := openIndex(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	declared, err := ix.UpdateManifest(ctx, m)
	if err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	return formatter.Success(UpdateResult{
		Manifest:             index.KeyOf(m).String(),
		DeclaresDependencies: declared,
	})
}

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	*RootOptions
	Channel string
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "remove <id> <version>",
		Short: "Remove a manifest from the index",
		Long: `Remove a manifest and its dependency edges from the index.

Interned ids, versions and channels left without any reference are deleted.

Example:
  pkgindex remove Contoso.App 1.2.0
  pkgindex remove Contoso.App 1.3.0 --channel beta`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(opts, index.Key{ID: args[0], Version: args[1], Channel: opts.Channel}, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Channel, "channel", "", "manifest channel")

	return cmd
}

func runRemove(opts *RemoveOptions, key index.Key, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	ix, err := openIndex(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	if err := ix.RemoveManifest(ctx, key); err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	return formatter.Success(RemoveResult{Manifest: key.String()})
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pkgindex/internal/index"
)

// DependentsResult is the output of the dependents command.
type DependentsResult struct {
	Package    string                    `json:"package"`
	Dependents []index.DependentManifest `json:"dependents"`
}

func (r DependentsResult) String() string {
	if len(r.Dependents) == 0 {
		return fmt.Sprintf("nothing depends on %s", r.Package)
	}
	var b strings.Builder
	for i, d := range r.Dependents {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.Manifest.String())
		if d.MinVersion != "" {
			fmt.Fprintf(&b, " >= %s", d.MinVersion)
		}
	}
	return b.String()
}

// DependenciesResult is the output of the dependencies command.
type DependenciesResult struct {
	Manifest     string              `json:"manifest"`
	Dependencies []index.Requirement `json:"dependencies"`
}

func (r DependenciesResult) String() string {
	if len(r.Dependencies) == 0 {
		return fmt.Sprintf("%s has no package dependencies", r.Manifest)
	}
	var b strings.Builder
	for i, d := range r.Dependencies {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.PackageID)
		if d.MinVersion != "" {
			fmt.Fprintf(&b, " >= %s", d.MinVersion)
		}
	}
	return b.String()
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Consistent bool `json:"consistent"`
}

func (r CheckResult) String() string {
	if r.Consistent {
		return "index is consistent"
	}
	return "index is inconsistent"
}

// ReferencedResult is the output of the referenced command.
type ReferencedResult struct {
	Column     string `json:"column"`
	Row        int64  `json:"row"`
	Referenced bool   `json:"referenced"`
	EdgeRow    int64  `json:"edge_row,omitempty"`
}

func (r ReferencedResult) String() string {
	if !r.Referenced {
		return fmt.Sprintf("%s row %d is not referenced", r.Column, r.Row)
	}
	return fmt.Sprintf("%s row %d is referenced by edge %d", r.Column, r.Row, r.EdgeRow)
}

// NewDependentsCommand creates the dependents command.
func NewDependentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dependents <package-id>",
		Short: "List manifests depending on a package",
		Long: `List every indexed manifest that depends on a package, with the minimum
version each one requires.

Example:
  pkgindex dependents Contoso.Runtime`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDependents(rootOpts, args[0], cmd)
		},
	}
}

func runDependents(opts *RootOptions, packageID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	ix, err := openIndex(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	dependents, err := ix.DependentManifests(ctx, packageID)
	if err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	return formatter.Success(DependentsResult{Package: packageID, Dependents: dependents})
}

// DependenciesOptions holds flags for the dependencies command.
type DependenciesOptions struct {
	*RootOptions
	Channel string
}

// NewDependenciesCommand creates the dependencies command.
func NewDependenciesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DependenciesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dependencies <id> <version>",
		Short: "List the stored dependencies of a manifest",
		Long: `List the packages an indexed manifest depends on.

Example:
  pkgindex dependencies Contoso.App 1.2.0
  pkgindex dependencies Contoso.App 1.3.0 --channel beta --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDependencies(opts, index.Key{ID: args[0], Version: args[1], Channel: opts.Channel}, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Channel, "channel", "", "manifest channel")

	return cmd
}

func runDependencies(opts *DependenciesOptions, key index.Key, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	ix, err := openIndex(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	deps, err := ix.Dependencies(ctx, key)
	if err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	return formatter.Success(DependenciesResult{Manifest: key.String(), Dependencies: deps})
}

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Log bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify referential integrity of the index",
		Long: `Verify that every dependency edge references an existing manifest, package
and minimum version. Exits 1 when a dangling edge is found.

With --log every dangling edge is logged to stderr instead of stopping at the
first one.

Example:
  pkgindex check --log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Log, "log", false, "log every violating edge")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	ix, err := openIndex(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	ok, err := ix.CheckConsistency(ctx, opts.Log)
	if err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}
	if !ok {
		_ = formatter.Error(ErrCodeInconsistent, "index has dangling dependency edges", nil)
		return NewExitError(ExitFailure, "index is inconsistent")
	}
	return formatter.Success(CheckResult{Consistent: true})
}

// NewReferencedCommand creates the referenced command.
func NewReferencedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "referenced <column> <row-id>",
		Short: "Check whether a dependency edge references a row",
		Long: `Check whether any dependency edge references a row through one of the
reference columns: manifest, min_version or package_id. Exits 1 when the row
is referenced, so scripts can gate deletions on it.

Example:
  pkgindex referenced min_version 12`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReferenced(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runReferenced(opts *RootOptions, column, rowArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	row, err := strconv.ParseInt(rowArg, 10, 64)
	if err != nil {
		return outputError(formatter, ErrCodeInvalidArgument, fmt.Errorf("invalid row id %q: %w", rowArg, err))
	}

	ix, err := openIndex(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer closeIndex(ix)

	edgeRow, referenced, err := ix.IsValueReferenced(ctx, column, row)
	if err != nil {
		return outputError(formatter, MapErrorToCode(err), err)
	}

	result := ReferencedResult{Column: column, Row: row, Referenced: referenced, EdgeRow: edgeRow}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if referenced {
		return NewExitError(ExitFailure, result.String())
	}
	return nil
}

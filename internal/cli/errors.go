package cli

import (
	"errors"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/manifest"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeOpenFailed       = "E002" // Index could not be opened
	ErrCodeManifestInvalid  = "E003" // Manifest failed to load or validate
	ErrCodeUnresolvable     = "E004" // Dependency names an unindexed package
	ErrCodeManifestNotFound = "E005" // Manifest not indexed
	ErrCodeManifestExists   = "E006" // Manifest already indexed
	ErrCodeInvalidColumn    = "E007" // Unknown reference column
	ErrCodeInconsistent     = "E008" // Consistency check found dangling edges
	ErrCodeMigrationFailed  = "E009" // Schema migration failed
	ErrCodeInvalidArgument  = "E010" // Malformed command argument
	ErrCodeIndexNotFound    = "E011" // --db names no existing index
)

// errIndexNotFound is returned by commands that read or modify an existing
// index when --db names no file.
var errIndexNotFound = errors.New("index not found")

// MapErrorToCode maps an index error to an error code.
func MapErrorToCode(err error) string {
	switch {
	case dependencies.IsUnresolvableDependency(err):
		return ErrCodeUnresolvable
	case dependencies.IsInvalidColumn(err):
		return ErrCodeInvalidColumn
	case errors.Is(err, index.ErrManifestNotFound):
		return ErrCodeManifestNotFound
	case errors.Is(err, index.ErrManifestExists):
		return ErrCodeManifestExists
	case errors.Is(err, manifest.ErrInvalidManifest):
		return ErrCodeManifestInvalid
	case errors.Is(err, errIndexNotFound):
		return ErrCodeIndexNotFound
	default:
		return ErrCodeGeneric
	}
}

// errorDetails returns structured context for err, or nil when err
// carries none.
func errorDetails(err error) *ErrorDetails {
	var de *dependencies.Error
	if !errors.As(err, &de) {
		return nil
	}
	switch {
	case len(de.Packages) > 0:
		return &ErrorDetails{MissingPackages: de.Packages}
	case de.Column != "":
		return &ErrorDetails{Column: de.Column}
	}
	return nil
}

// outputError writes err through the formatter and returns the matching
// ExitError. Errors reaching the CLI are command-level errors (exit code 2).
func outputError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), errorDetails(err))
	return WrapExitError(ExitCommandError, code, err)
}

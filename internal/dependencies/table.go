package dependencies

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/store"
)

// Relation and index names.
const (
	TableName = "dependencies"

	uniqueIndexName     = "dependencies_pkindex"
	minVersionIndexName = "dependencies_min_version_index"
	packageIndexName    = "dependencies_package_id_index"
)

// Reference column names, accepted by IsValueReferenced.
const (
	ColumnManifest   = "manifest"
	ColumnMinVersion = "min_version"
	ColumnPackage    = "package_id"
)

// Interner is an interned value table: find-or-create rows for string
// values. TableName and ValueColumn are used to join against it.
// store.BoundValueTable implements it.
type Interner interface {
	TableName() string
	ValueColumn() string
	FindRow(ctx context.Context, value string) (int64, bool, error)
	EnsureRow(ctx context.Context, value string) (int64, error)
}

// Tables names the collaborators the dependencies relation references.
type Tables struct {
	// Packages interns package identifiers (the ids table).
	Packages Interner

	// Versions interns version strings (the versions table).
	Versions Interner

	// Manifests is the manifest table name, used by CheckConsistency.
	Manifests string

	// Logger receives edge-level debug lines and consistency violations.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// Edge is one stored or declared dependency of a manifest.
type Edge struct {
	// RowID is the edge's rowid; zero for declared edges not yet stored.
	RowID int64

	// PackageRow references the identifier table.
	PackageRow int64

	// MinVersion is the minimum version; invalid when none is required.
	MinVersion sql.NullString
}

// Dependent is a manifest that depends on a given package.
type Dependent struct {
	ManifestRow int64
	MinVersion  sql.NullString
}

// Table is the dependencies relation for one schema version.
type Table interface {
	// Version is the schema version this implementation serves.
	Version() store.SchemaVersion

	// Create defines the relation and its indexes.
	Create(ctx context.Context) error

	// Exists reports whether the relation is in the catalog.
	Exists(ctx context.Context) (bool, error)

	// Add stores the package dependencies of a newly registered manifest.
	Add(ctx context.Context, m *manifest.Manifest, manifestRow int64) error

	// Update reconciles the stored dependencies of manifestRow with those
	// declared by m. It reports whether m declares any package dependency.
	Update(ctx context.Context, m *manifest.Manifest, manifestRow int64) (bool, error)

	// Remove deletes every edge owned by manifestRow.
	Remove(ctx context.Context, manifestRow int64) error

	// Dependents returns the manifests depending on packageID.
	Dependents(ctx context.Context, packageID string) ([]Dependent, error)

	// Dependencies returns the edges owned by manifestRow.
	Dependencies(ctx context.Context, manifestRow int64) ([]Edge, error)

	// CheckConsistency reports whether every edge references existing rows.
	// With log set, every violating edge is logged.
	CheckConsistency(ctx context.Context, log bool) (bool, error)

	// IsValueReferenced returns the rowid of one edge referencing rowID
	// through column, or false if none does.
	IsValueReferenced(ctx context.Context, column string, rowID int64) (int64, bool, error)

	// PrepareForPackaging drops the relation and its indexes.
	PrepareForPackaging(ctx context.Context) error
}

// New returns the implementation for the given schema version.
func New(version store.SchemaVersion, db store.Querier, tables Tables) (Table, error) {
	switch {
	case version.AtLeast(store.Version1_4):
		if tables.Packages == nil || tables.Versions == nil || tables.Manifests == "" {
			return nil, fmt.Errorf("dependencies table %s: missing collaborator tables", version)
		}
		logger := tables.Logger
		if logger == nil {
			logger = slog.Default()
		}
		return &tableV1_4{
			version:   version,
			db:        db,
			packages:  tables.Packages,
			versions:  tables.Versions,
			manifests: tables.Manifests,
			logger:    logger,
		}, nil
	case version == store.Version1_0:
		return absentTable{version: version}, nil
	default:
		return nil, fmt.Errorf("dependencies table: unsupported schema version %s", version)
	}
}

// NewPackaged returns the implementation for an index whose dependencies
// relation was dropped by PrepareForPackaging. It behaves like a schema
// without the relation: reads are empty and writes are dropped.
func NewPackaged(version store.SchemaVersion) Table {
	return absentTable{version: version}
}

// validColumn reports whether name is one of the reference columns.
func validColumn(name string) bool {
	switch name {
	case ColumnManifest, ColumnMinVersion, ColumnPackage:
		return true
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

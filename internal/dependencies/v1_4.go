package dependencies

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/metrics"
	"github.com/roach88/pkgindex/internal/store"
)

// tableV1_4 is the dependencies relation introduced in schema 1.4.
type tableV1_4 struct {
	version   store.SchemaVersion
	db        store.Querier
	packages  Interner
	versions  Interner
	manifests string
	logger    *slog.Logger
}

func (t *tableV1_4) Version() store.SchemaVersion {
	return t.version
}

func (t *tableV1_4) Create(ctx context.Context) error {
	sp, err := store.BeginSavepoint(ctx, t.db, "create_dependencies_v1_4")
	if err != nil {
		return fmt.Errorf("create dependencies: %w", err)
	}
	defer sp.Rollback() // No-op if committed

	stmts := []string{
		`CREATE TABLE dependencies (
			rowid       INTEGER PRIMARY KEY,
			manifest    INT64 NOT NULL,
			min_version INT64,
			package_id  INT64 NOT NULL
		)`,
		// The minimum version is deliberately not part of the key: one edge
		// per (manifest, package).
		`CREATE UNIQUE INDEX ` + uniqueIndexName + ` ON dependencies(manifest, package_id)`,
		`CREATE INDEX ` + minVersionIndexName + ` ON dependencies(min_version)`,
		`CREATE INDEX ` + packageIndexName + ` ON dependencies(package_id)`,
	}
	for _, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create dependencies: %w", err)
		}
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("create dependencies: %w", err)
	}
	return nil
}

func (t *tableV1_4) Exists(ctx context.Context) (bool, error) {
	return store.TableExists(ctx, t.db, TableName)
}

func (t *tableV1_4) Add(ctx context.Context, m *manifest.Manifest, manifestRow int64) error {
	deps := m.Dependencies(manifest.KindPackage)
	if len(deps) == 0 {
		return nil
	}

	sp, err := store.BeginSavepoint(ctx, t.db, "dependencies_add_v1_4")
	if err != nil {
		return fmt.Errorf("add dependencies: %w", err)
	}
	defer sp.Rollback()

	edges, err := t.resolve(ctx, deps)
	if err != nil {
		return fmt.Errorf("add dependencies: %w", err)
	}
	if err := t.insert(ctx, manifestRow, edges); err != nil {
		return fmt.Errorf("add dependencies: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("add dependencies: %w", err)
	}

	metrics.EdgesAdded.Add(float64(len(edges)))
	t.logger.Debug("dependencies added",
		"manifest_row", manifestRow,
		"added", len(edges),
	)
	return nil
}

func (t *tableV1_4) Update(ctx context.Context, m *manifest.Manifest, manifestRow int64) (bool, error) {
	deps := m.Dependencies(manifest.KindPackage)

	sp, err := store.BeginSavepoint(ctx, t.db, "dependencies_update_v1_4")
	if err != nil {
		return false, fmt.Errorf("update dependencies: %w", err)
	}
	defer sp.Rollback()

	declared, err := t.resolve(ctx, deps)
	if err != nil {
		return false, fmt.Errorf("update dependencies: %w", err)
	}

	stored, err := t.Dependencies(ctx, manifestRow)
	if err != nil {
		return false, fmt.Errorf("update dependencies: %w", err)
	}

	plan := Diff(declared, stored)
	if err := t.apply(ctx, manifestRow, plan); err != nil {
		return false, fmt.Errorf("update dependencies: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("update dependencies: %w", err)
	}

	metrics.EdgesAdded.Add(float64(len(plan.Add)))
	metrics.EdgesRemoved.Add(float64(len(plan.Remove)))
	t.logger.Debug("dependencies reconciled",
		"manifest_row", manifestRow,
		"declared", len(declared),
		"added", len(plan.Add),
		"removed", len(plan.Remove),
	)
	return len(deps) > 0, nil
}

func (t *tableV1_4) Remove(ctx context.Context, manifestRow int64) error {
	sp, err := store.BeginSavepoint(ctx, t.db, "dependencies_remove_v1_4")
	if err != nil {
		return fmt.Errorf("remove dependencies: %w", err)
	}
	defer sp.Rollback()

	result, err := t.db.ExecContext(ctx, `DELETE FROM dependencies WHERE manifest = ?`, manifestRow)
	if err != nil {
		return fmt.Errorf("remove dependencies: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove dependencies: rows affected: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("remove dependencies: %w", err)
	}

	metrics.EdgesRemoved.Add(float64(removed))
	t.logger.Debug("dependencies removed",
		"manifest_row", manifestRow,
		"removed", removed,
	)
	return nil
}

// Dependents joins edges to the identifier table (filtered by packageID) and
// left-joins the version table, so edges without a minimum version are
// reported with an invalid MinVersion.
// Returns an empty slice (not nil) when nothing depends on packageID.
func (t *tableV1_4) Dependents(ctx context.Context, packageID string) ([]Dependent, error) {
	query := fmt.Sprintf(`
		SELECT d.manifest, v.%[3]s
		FROM dependencies d
		JOIN %[1]s p ON p.rowid = d.package_id
		LEFT JOIN %[2]s v ON v.rowid = d.min_version
		WHERE p.%[4]s = ?
		ORDER BY d.manifest ASC
	`, t.packages.TableName(), t.versions.TableName(), t.versions.ValueColumn(), t.packages.ValueColumn())

	rows, err := t.db.QueryContext(ctx, query, manifest.NormalizeID(packageID))
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}
	defer rows.Close()

	dependents := []Dependent{}
	for rows.Next() {
		var d Dependent
		if err := rows.Scan(&d.ManifestRow, &d.MinVersion); err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		dependents = append(dependents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependents: %w", err)
	}
	return dependents, nil
}

// Dependencies left-joins the version table so edges without a minimum
// version are still returned.
// Returns an empty slice (not nil) when the manifest has no edges.
func (t *tableV1_4) Dependencies(ctx context.Context, manifestRow int64) ([]Edge, error) {
	query := fmt.Sprintf(`
		SELECT d.rowid, d.package_id, v.%[2]s
		FROM dependencies d
		LEFT JOIN %[1]s v ON v.rowid = d.min_version
		WHERE d.manifest = ?
		ORDER BY d.package_id ASC
	`, t.versions.TableName(), t.versions.ValueColumn())

	rows, err := t.db.QueryContext(ctx, query, manifestRow)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.RowID, &e.PackageRow, &e.MinVersion); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}
	return edges, nil
}

func (t *tableV1_4) PrepareForPackaging(ctx context.Context) error {
	sp, err := store.BeginSavepoint(ctx, t.db, "prepare_for_packaging_v1_4")
	if err != nil {
		return fmt.Errorf("prepare dependencies for packaging: %w", err)
	}
	defer sp.Rollback()

	stmts := []string{
		`DROP INDEX IF EXISTS ` + uniqueIndexName,
		`DROP INDEX IF EXISTS ` + minVersionIndexName,
		`DROP INDEX IF EXISTS ` + packageIndexName,
		`DROP TABLE IF EXISTS ` + TableName,
	}
	for _, stmt := range stmts {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare dependencies for packaging: %w", err)
		}
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("prepare dependencies for packaging: %w", err)
	}
	return nil
}

// resolve maps declarations to edges. Every identifier is looked up before
// failing, so the error names all missing packages at once. Nothing is
// written.
func (t *tableV1_4) resolve(ctx context.Context, deps []manifest.Dependency) ([]Edge, error) {
	edges := make([]Edge, 0, len(deps))
	var missing []string
	for _, dep := range deps {
		packageRow, ok, err := t.packages.FindRow(ctx, dep.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", dep.ID, err)
		}
		if !ok {
			missing = append(missing, dep.ID)
			continue
		}
		edges = append(edges, Edge{
			PackageRow: packageRow,
			MinVersion: nullString(dep.MinVersion),
		})
	}

	if len(missing) > 0 {
		metrics.UnresolvableDependencies.Add(float64(len(missing)))
		return nil, NewUnresolvableDependencyError(missing)
	}
	return edges, nil
}

// insert stores edges for manifestRow, interning minimum versions.
func (t *tableV1_4) insert(ctx context.Context, manifestRow int64, edges []Edge) error {
	for _, e := range edges {
		var versionRow sql.NullInt64
		if e.MinVersion.Valid {
			row, err := t.versions.EnsureRow(ctx, e.MinVersion.String)
			if err != nil {
				return err
			}
			versionRow = sql.NullInt64{Int64: row, Valid: true}
		}

		_, err := t.db.ExecContext(ctx, `
			INSERT INTO dependencies (manifest, min_version, package_id)
			VALUES (?, ?, ?)
		`, manifestRow, versionRow, e.PackageRow)
		if err != nil {
			return fmt.Errorf("insert dependency on package row %d: %w", e.PackageRow, err)
		}
	}
	return nil
}

// apply deletes plan.Remove by (package_id, manifest) key, then inserts
// plan.Add. Deleting first keeps the (manifest, package_id) index valid when
// a package's minimum version changes.
func (t *tableV1_4) apply(ctx context.Context, manifestRow int64, plan Plan) error {
	for _, e := range plan.Remove {
		_, err := t.db.ExecContext(ctx, `
			DELETE FROM dependencies WHERE package_id = ? AND manifest = ?
		`, e.PackageRow, manifestRow)
		if err != nil {
			return fmt.Errorf("delete dependency on package row %d: %w", e.PackageRow, err)
		}
	}
	return t.insert(ctx, manifestRow, plan.Add)
}

package dependencies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pkgindex/internal/metrics"
	"github.com/roach88/pkgindex/internal/store"
)

// CheckConsistency left-joins every edge against the manifest, identifier
// and version tables. An edge is dangling when any join misses (the version
// join only counts when the edge has a minimum version). Without log the scan
// stops at the first violation.
func (t *tableV1_4) CheckConsistency(ctx context.Context, log bool) (bool, error) {
	exists, err := store.TableExists(ctx, t.db, TableName)
	if err != nil {
		return false, fmt.Errorf("check dependencies consistency: %w", err)
	}
	if !exists {
		return true, nil
	}

	query := fmt.Sprintf(`
		SELECT d.rowid
		FROM dependencies d
		LEFT JOIN %[1]s m ON m.rowid = d.manifest
		LEFT JOIN %[2]s p ON p.rowid = d.package_id
		LEFT JOIN %[3]s v ON v.rowid = d.min_version
		WHERE m.rowid IS NULL
		   OR p.rowid IS NULL
		   OR (d.min_version IS NOT NULL AND v.rowid IS NULL)
		ORDER BY d.rowid ASC
	`, t.manifests, t.packages.TableName(), t.versions.TableName())
	if !log {
		query += ` LIMIT 1`
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("check dependencies consistency: %w", err)
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			return false, fmt.Errorf("scan dependencies violation: %w", err)
		}
		violations++
		if log {
			t.logger.Info("dependencies consistency violation",
				"table", TableName,
				"violation_row", rowID,
			)
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate dependencies violations: %w", err)
	}

	metrics.ConsistencyViolations.Add(float64(violations))
	return violations == 0, nil
}

// IsValueReferenced returns the rowid of any one edge whose column equals
// rowID. column must be one of ColumnManifest, ColumnMinVersion or
// ColumnPackage.
func (t *tableV1_4) IsValueReferenced(ctx context.Context, column string, rowID int64) (int64, bool, error) {
	if !validColumn(column) {
		return 0, false, NewInvalidColumnError(column)
	}

	var edgeRow int64
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM dependencies WHERE %s = ? LIMIT 1`, column), rowID,
	).Scan(&edgeRow)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("check %s reference to row %d: %w", column, rowID, err)
	}
	return edgeRow, true, nil
}

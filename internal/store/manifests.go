package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Manifest table names.
const (
	ManifestTableName     = "manifest"
	ManifestIDColumn      = "id"
	ManifestVersionColumn = "version"
	ManifestChannelColumn = "channel"
)

// ManifestIdentity is a manifest row with its interned values materialized.
type ManifestIdentity struct {
	RowID   int64  `json:"row_id"`
	ID      string `json:"id"`
	Version string `json:"version"`
	Channel string `json:"channel,omitempty"`
}

// String returns "id@version" or "id@version/channel".
func (m ManifestIdentity) String() string {
	if m.Channel != "" {
		return fmt.Sprintf("%s@%s/%s", m.ID, m.Version, m.Channel)
	}
	return fmt.Sprintf("%s@%s", m.ID, m.Version)
}

// ManifestTable stores one row per (id, version, channel), each column
// referencing an interned value row.
type ManifestTable struct{}

// Manifests is the manifest table of the base schema.
var Manifests = ManifestTable{}

// TableName returns the table name.
func (ManifestTable) TableName() string { return ManifestTableName }

// Insert adds a manifest row. A duplicate identity fails with the unique
// index constraint error.
func (ManifestTable) Insert(ctx context.Context, q Querier, idRow, versionRow, channelRow int64) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO manifest (id, version, channel)
		VALUES (?, ?, ?)
	`, idRow, versionRow, channelRow)
	if err != nil {
		return 0, fmt.Errorf("insert manifest: %w", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert manifest: last insert id: %w", err)
	}
	return rowID, nil
}

// Find returns the rowid of the manifest with the given interned values.
func (ManifestTable) Find(ctx context.Context, q Querier, idRow, versionRow, channelRow int64) (int64, bool, error) {
	var rowID int64
	err := q.QueryRowContext(ctx, `
		SELECT rowid FROM manifest
		WHERE id = ? AND version = ? AND channel = ?
	`, idRow, versionRow, channelRow).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find manifest: %w", err)
	}
	return rowID, true, nil
}

// FindByValues resolves (id, version, channel) strings to a manifest rowid.
// Returns false if any value is not interned or no manifest matches.
func (t ManifestTable) FindByValues(ctx context.Context, q Querier, id, version, channel string) (int64, bool, error) {
	row, err := t.refRows(ctx, q, id, version, channel)
	if err != nil || row == nil {
		return 0, false, err
	}
	return t.Find(ctx, q, row[0], row[1], row[2])
}

func (ManifestTable) refRows(ctx context.Context, q Querier, id, version, channel string) ([]int64, error) {
	rows := make([]int64, 0, 3)
	for _, ref := range []struct {
		table ValueTable
		value string
	}{{IDs, id}, {Versions, version}, {Channels, channel}} {
		rowID, ok, err := ref.table.Find(ctx, q, ref.value)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		rows = append(rows, rowID)
	}
	return rows, nil
}

// Refs returns the interned row ids a manifest row points at.
func (ManifestTable) Refs(ctx context.Context, q Querier, rowID int64) (idRow, versionRow, channelRow int64, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT id, version, channel FROM manifest WHERE rowid = ?
	`, rowID).Scan(&idRow, &versionRow, &channelRow)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, 0, fmt.Errorf("manifest row %d: %w", rowID, ErrNotFound)
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read manifest row %d: %w", rowID, err)
	}
	return idRow, versionRow, channelRow, nil
}

// Identity materializes the interned values of a manifest row.
// Returns ErrNotFound if the row does not exist.
func (ManifestTable) Identity(ctx context.Context, q Querier, rowID int64) (ManifestIdentity, error) {
	m := ManifestIdentity{RowID: rowID}
	err := q.QueryRowContext(ctx, `
		SELECT i.id, v.version, c.channel
		FROM manifest m
		JOIN ids i ON i.rowid = m.id
		JOIN versions v ON v.rowid = m.version
		JOIN channels c ON c.rowid = m.channel
		WHERE m.rowid = ?
	`, rowID).Scan(&m.ID, &m.Version, &m.Channel)
	if errors.Is(err, sql.ErrNoRows) {
		return ManifestIdentity{}, fmt.Errorf("manifest row %d: %w", rowID, ErrNotFound)
	}
	if err != nil {
		return ManifestIdentity{}, fmt.Errorf("read manifest row %d: %w", rowID, err)
	}
	return m, nil
}

// All returns every manifest ordered by rowid.
// Returns an empty slice (not nil) when the table is empty.
func (ManifestTable) All(ctx context.Context, q Querier) ([]ManifestIdentity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.rowid, i.id, v.version, c.channel
		FROM manifest m
		JOIN ids i ON i.rowid = m.id
		JOIN versions v ON v.rowid = m.version
		JOIN channels c ON c.rowid = m.channel
		ORDER BY m.rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query manifests: %w", err)
	}
	defer rows.Close()

	manifests := []ManifestIdentity{}
	for rows.Next() {
		var m ManifestIdentity
		if err := rows.Scan(&m.RowID, &m.ID, &m.Version, &m.Channel); err != nil {
			return nil, fmt.Errorf("scan manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manifests: %w", err)
	}
	return manifests, nil
}

// Delete removes a manifest row.
func (ManifestTable) Delete(ctx context.Context, q Querier, rowID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM manifest WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("delete manifest row %d: %w", rowID, err)
	}
	return nil
}

// IsValueReferenced reports whether any manifest references rowID through
// column (ManifestIDColumn, ManifestVersionColumn or ManifestChannelColumn).
func (ManifestTable) IsValueReferenced(ctx context.Context, q Querier, column string, rowID int64) (bool, error) {
	switch column {
	case ManifestIDColumn, ManifestVersionColumn, ManifestChannelColumn:
	default:
		return false, fmt.Errorf("manifest has no reference column %q", column)
	}

	var found int64
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM manifest WHERE %s = ? LIMIT 1`, column), rowID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check manifest %s reference: %w", column, err)
	}
	return true, nil
}

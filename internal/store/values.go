package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ValueTable is an append-only interned string table: each distinct value
// is stored once and referenced elsewhere by rowid.
type ValueTable struct {
	name   string
	column string
}

// Interned value tables of the base schema.
var (
	IDs      = ValueTable{name: "ids", column: "id"}
	Versions = ValueTable{name: "versions", column: "version"}
	Channels = ValueTable{name: "channels", column: "channel"}
)

// TableName returns the table name.
func (t ValueTable) TableName() string { return t.name }

// ValueColumn returns the name of the column holding the value.
func (t ValueTable) ValueColumn() string { return t.column }

// Find returns the rowid for value, or false if it is not interned.
func (t ValueTable) Find(ctx context.Context, q Querier, value string) (int64, bool, error) {
	var rowID int64
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE %s = ?`, t.name, t.column), value,
	).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find %s %q: %w", t.column, value, err)
	}
	return rowID, true, nil
}

// Ensure returns the rowid for value, inserting it if needed.
// Safe to call repeatedly inside one savepoint.
func (t ValueTable) Ensure(ctx context.Context, q Querier, value string) (int64, error) {
	result, err := q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?) ON CONFLICT(%s) DO NOTHING`, t.name, t.column, t.column),
		value,
	)
	if err != nil {
		return 0, fmt.Errorf("ensure %s %q: insert: %w", t.column, value, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ensure %s %q: rows affected: %w", t.column, value, err)
	}
	if rowsAffected > 0 {
		rowID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("ensure %s %q: last insert id: %w", t.column, value, err)
		}
		return rowID, nil
	}

	// Conflict - value already interned, fetch the existing row
	rowID, ok, err := t.Find(ctx, q, value)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("ensure %s %q: row vanished after conflict", t.column, value)
	}
	return rowID, nil
}

// Value returns the string stored at rowID. Returns ErrNotFound if there is
// no such row.
func (t ValueTable) Value(ctx context.Context, q Querier, rowID int64) (string, error) {
	var value string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE rowid = ?`, t.column, t.name), rowID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s row %d: %w", t.name, rowID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s row %d: %w", t.name, rowID, err)
	}
	return value, nil
}

// Delete removes the row. Callers check that nothing references it first.
func (t ValueTable) Delete(ctx context.Context, q Querier, rowID int64) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, t.name), rowID); err != nil {
		return fmt.Errorf("delete %s row %d: %w", t.name, rowID, err)
	}
	return nil
}

// Count returns the number of interned values.
func (t ValueTable) Count(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// Bind fixes the Querier, yielding the find/ensure capability consumed by
// the dependencies table.
func (t ValueTable) Bind(q Querier) *BoundValueTable {
	return &BoundValueTable{table: t, q: q}
}

// BoundValueTable is a ValueTable bound to a Querier.
type BoundValueTable struct {
	table ValueTable
	q     Querier
}

// TableName returns the table name.
func (b *BoundValueTable) TableName() string { return b.table.name }

// ValueColumn returns the value column name.
func (b *BoundValueTable) ValueColumn() string { return b.table.column }

// FindRow returns the rowid for value, or false if it is not interned.
func (b *BoundValueTable) FindRow(ctx context.Context, value string) (int64, bool, error) {
	return b.table.Find(ctx, b.q, value)
}

// EnsureRow returns the rowid for value, inserting it if needed.
func (b *BoundValueTable) EnsureRow(ctx context.Context, value string) (int64, error) {
	return b.table.Ensure(ctx, b.q, value)
}

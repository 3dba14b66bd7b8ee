package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Metadata keys written when a store is created.
const (
	metadataDatabaseID = "database_id"
	metadataCreatedAt  = "created_at"
)

// ErrNotFound is returned when a row looked up by id does not exist.
var ErrNotFound = errors.New("not found")

// Querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
// Table helpers take a Querier so they run inside whatever savepoint the
// caller has open.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures Open.
type Options struct {
	// Version is the schema version for a newly created store.
	// Zero means LatestVersion. Ignored when the store already exists.
	Version SchemaVersion

	// Init runs inside the creation transaction of a new store, after the
	// base schema and version stamp and before commit. An error aborts
	// creation and leaves the file unstamped, so the next Open creates it
	// again. Not called for existing stores.
	Init func(q Querier, version SchemaVersion) error
}

// Store provides durable storage for the package index.
// Uses SQLite with WAL mode and a single pooled connection, so nested
// savepoints issued through DB() always land on the same connection.
type Store struct {
	db      *sql.DB
	version SchemaVersion
	created bool
}

// Open creates or opens a SQLite index at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// A new database is stamped with opts.Version; an existing one keeps the
// version it was created or last migrated to.
func Open(path string, opts Options) (*Store, error) {
	version := opts.Version
	if version.IsZero() {
		version = LatestVersion
	}
	if !version.Supported() {
		return nil, fmt.Errorf("unsupported schema version %s", version)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and savepoints are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.applySchema(version, opts.Init); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection pool as a Querier.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Version returns the schema version of the open store.
func (s *Store) Version() SchemaVersion {
	return s.version
}

// Created reports whether Open created the schema (as opposed to opening an
// existing index).
func (s *Store) Created() bool {
	return s.created
}

// SetVersion records a new schema version after a migration step.
// Callers run it inside the savepoint that performed the migration.
func (s *Store) SetVersion(ctx context.Context, q Querier, v SchemaVersion) error {
	if !v.Supported() {
		return fmt.Errorf("set version: unsupported schema version %s", v)
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v.userVersion())); err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	s.version = v
	return nil
}

// DatabaseID returns the identifier generated when the store was created.
func (s *Store) DatabaseID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE name = ?`, metadataDatabaseID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read database id: %w", err)
	}
	return id, nil
}

// Vacuum rebuilds the database file, reclaiming pages freed by dropped
// tables and indexes.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// TableExists reports whether a table with the given name is in the catalog.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count > 0, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the base tables if they don't exist and resolves the
// schema version from PRAGMA user_version.
// This function is idempotent.
func (s *Store) applySchema(version SchemaVersion, initFn func(Querier, SchemaVersion) error) error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if current != 0 {
		v, ok := versionFromUser(current)
		if !ok {
			return fmt.Errorf("unknown schema user_version %d", current)
		}
		s.version = v
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO metadata (name, value) VALUES (?, ?), (?, ?)`,
		metadataDatabaseID, uuid.Must(uuid.NewV7()).String(),
		metadataCreatedAt, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version.userVersion())); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	if initFn != nil {
		if err := initFn(tx, version); err != nil {
			return fmt.Errorf("initialize schema %s: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	s.version = version
	s.created = true
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

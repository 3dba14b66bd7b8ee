package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSavepointDone is returned by Commit on a savepoint that was already
// committed or rolled back.
var ErrSavepointDone = errors.New("savepoint already finished")

// Savepoint is a named, nestable unit of atomic work.
//
// Usage:
//
//	sp, err := store.BeginSavepoint(ctx, db, "dependencies_add")
//	if err != nil {
//		return err
//	}
//	defer sp.Rollback() // No-op if committed
//	... statements through db ...
//	return sp.Commit(ctx)
//
// Outside a transaction SAVEPOINT starts one; inside, it nests. Rollback
// undoes everything since BeginSavepoint, including inner savepoints that
// were already committed.
type Savepoint struct {
	db   Querier
	name string
	done bool
}

// BeginSavepoint opens a savepoint on db.
func BeginSavepoint(ctx context.Context, db Querier, name string) (*Savepoint, error) {
	sp := &Savepoint{db: db, name: quoteIdent(name)}
	if _, err := db.ExecContext(ctx, "SAVEPOINT "+sp.name); err != nil {
		return nil, fmt.Errorf("savepoint %s: %w", name, err)
	}
	return sp, nil
}

// Commit releases the savepoint, making its work part of the enclosing
// transaction (or durable, for the outermost savepoint).
func (s *Savepoint) Commit(ctx context.Context) error {
	if s.done {
		return ErrSavepointDone
	}
	if _, err := s.db.ExecContext(ctx, "RELEASE "+s.name); err != nil {
		return fmt.Errorf("release %s: %w", s.name, err)
	}
	s.done = true
	return nil
}

// Rollback undoes the savepoint's work and releases it. It is a no-op after
// Commit, so it is safe to defer unconditionally. It ignores the caller's
// cancellation: a rollback must run even when ctx is already done.
func (s *Savepoint) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true

	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, "ROLLBACK TO "+s.name); err != nil {
		return fmt.Errorf("rollback to %s: %w", s.name, err)
	}
	if _, err := s.db.ExecContext(ctx, "RELEASE "+s.name); err != nil {
		return fmt.Errorf("release %s: %w", s.name, err)
	}
	return nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

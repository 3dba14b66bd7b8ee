package dependencies

import (
	"context"
	"fmt"

	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/store"
)

// absentTable serves schema versions that predate the dependencies relation,
// and packaged indexes that no longer carry it. Writes are accepted and
// dropped; reads are empty.
type absentTable struct {
	version store.SchemaVersion
}

func (a absentTable) Version() store.SchemaVersion { return a.version }

func (a absentTable) Create(context.Context) error {
	return fmt.Errorf("create dependencies: schema %s has no dependencies relation", a.version)
}

func (a absentTable) Exists(context.Context) (bool, error) { return false, nil }

func (a absentTable) Add(context.Context, *manifest.Manifest, int64) error { return nil }

func (a absentTable) Update(context.Context, *manifest.Manifest, int64) (bool, error) {
	return false, nil
}

func (a absentTable) Remove(context.Context, int64) error { return nil }

func (a absentTable) Dependents(context.Context, string) ([]Dependent, error) {
	return []Dependent{}, nil
}

func (a absentTable) Dependencies(context.Context, int64) ([]Edge, error) {
	return []Edge{}, nil
}

func (a absentTable) CheckConsistency(context.Context, bool) (bool, error) { return true, nil }

func (a absentTable) IsValueReferenced(_ context.Context, column string, _ int64) (int64, bool, error) {
	if !validColumn(column) {
		return 0, false, NewInvalidColumnError(column)
	}
	return 0, false, nil
}

func (a absentTable) PrepareForPackaging(context.Context) error { return nil }

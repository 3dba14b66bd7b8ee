package index

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/metrics"
	"github.com/roach88/pkgindex/internal/store"
)

// DependentManifest is a manifest depending on a package, with the minimum
// version it requires. MinVersion is empty when no minimum is declared.
type DependentManifest struct {
	Manifest   store.ManifestIdentity `json:"manifest"`
	MinVersion string                 `json:"min_version,omitempty"`
}

// Requirement is one stored dependency of a manifest.
type Requirement struct {
	PackageRow int64  `json:"package_row"`
	PackageID  string `json:"package_id"`
	MinVersion string `json:"min_version,omitempty"`
}

// Dependents returns the manifest rows that depend on packageID, ordered by
// manifest row.
func (ix *Index) Dependents(ctx context.Context, packageID string) ([]dependencies.Dependent, error) {
	return ix.deps.Dependents(ctx, packageID)
}

// DependentManifests is Dependents with every manifest row materialized into
// its identity.
func (ix *Index) DependentManifests(ctx context.Context, packageID string) (result []DependentManifest, err error) {
	start := time.Now()
	defer func() { metrics.Observe("dependents", start, err) }()

	dependents, err := ix.deps.Dependents(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", packageID, err)
	}

	// Dependents has closed its rows; identity lookups can run now.
	result = make([]DependentManifest, 0, len(dependents))
	for _, d := range dependents {
		identity, err := store.Manifests.Identity(ctx, ix.store.DB(), d.ManifestRow)
		if err != nil {
			return nil, fmt.Errorf("dependents of %s: %w", packageID, err)
		}
		result = append(result, DependentManifest{
			Manifest:   identity,
			MinVersion: d.MinVersion.String,
		})
	}
	return result, nil
}

// Dependencies returns the stored dependencies of the manifest named by key,
// ordered by package row.
func (ix *Index) Dependencies(ctx context.Context, key Key) (result []Requirement, err error) {
	start := time.Now()
	defer func() { metrics.Observe("dependencies", start, err) }()

	key = key.normalized()
	rowID, err := ix.findRow(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", key, err)
	}

	edges, err := ix.deps.Dependencies(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", key, err)
	}

	result = make([]Requirement, 0, len(edges))
	for _, e := range edges {
		id, err := store.IDs.Value(ctx, ix.store.DB(), e.PackageRow)
		if err != nil {
			return nil, fmt.Errorf("dependencies of %s: %w", key, err)
		}
		result = append(result, Requirement{
			PackageRow: e.PackageRow,
			PackageID:  id,
			MinVersion: e.MinVersion.String,
		})
	}
	return result, nil
}

// CheckConsistency reports whether every dependency edge references existing
// rows. With log set, every dangling edge is logged.
func (ix *Index) CheckConsistency(ctx context.Context, log bool) (ok bool, err error) {
	start := time.Now()
	defer func() { metrics.Observe("check_consistency", start, err) }()

	ok, err = ix.deps.CheckConsistency(ctx, log)
	if err != nil {
		return false, err
	}
	if !ok {
		ix.logger.Warn("index is inconsistent", "table", dependencies.TableName)
	}
	return ok, nil
}

// IsValueReferenced reports whether a dependency edge references rowID
// through column, returning one such edge's row id.
func (ix *Index) IsValueReferenced(ctx context.Context, column string, rowID int64) (int64, bool, error) {
	return ix.deps.IsValueReferenced(ctx, column, rowID)
}

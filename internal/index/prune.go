package index

import (
	"context"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/metrics"
	"github.com/roach88/pkgindex/internal/store"
)

// valueRef is an interned row that may lose its last reference.
type valueRef struct {
	table store.ValueTable
	row   int64
}

// referrer is a column that can point at an interned row.
type referrer struct {
	manifestColumn string
	edgeColumn     string
}

// referrers lists, per interned table, the columns referencing it.
var referrers = map[string]referrer{
	store.IDs.TableName():      {manifestColumn: store.ManifestIDColumn, edgeColumn: dependencies.ColumnPackage},
	store.Versions.TableName(): {manifestColumn: store.ManifestVersionColumn, edgeColumn: dependencies.ColumnMinVersion},
	store.Channels.TableName(): {manifestColumn: store.ManifestChannelColumn},
}

// pruneCandidates collects the interned rows referenced by a manifest and
// its edges. Must run before they are deleted.
func (ix *Index) pruneCandidates(ctx context.Context, manifestRow int64) ([]valueRef, error) {
	db := ix.store.DB()

	idRow, versionRow, channelRow, err := store.Manifests.Refs(ctx, db, manifestRow)
	if err != nil {
		return nil, err
	}
	candidates := []valueRef{
		{table: store.IDs, row: idRow},
		{table: store.Versions, row: versionRow},
		{table: store.Channels, row: channelRow},
	}

	edges, err := ix.deps.Dependencies(ctx, manifestRow)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		candidates = append(candidates, valueRef{table: store.IDs, row: e.PackageRow})
		if !e.MinVersion.Valid {
			continue
		}
		row, ok, err := store.Versions.Find(ctx, db, e.MinVersion.String)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, valueRef{table: store.Versions, row: row})
		}
	}
	return candidates, nil
}

// prune deletes candidates no manifest or edge references any more and
// returns how many were deleted.
func (ix *Index) prune(ctx context.Context, candidates []valueRef) (int, error) {
	db := ix.store.DB()
	seen := make(map[valueRef]bool, len(candidates))
	pruned := 0

	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true

		ref := referrers[c.table.TableName()]
		used, err := store.Manifests.IsValueReferenced(ctx, db, ref.manifestColumn, c.row)
		if err != nil {
			return pruned, err
		}
		if !used && ref.edgeColumn != "" {
			_, used, err = ix.deps.IsValueReferenced(ctx, ref.edgeColumn, c.row)
			if err != nil {
				return pruned, err
			}
		}
		if used {
			continue
		}

		if err := c.table.Delete(ctx, db, c.row); err != nil {
			return pruned, err
		}
		metrics.PrunedValues.WithLabelValues(c.table.TableName()).Inc()
		ix.logger.Debug("interned value pruned",
			"table", c.table.TableName(),
			"row", c.row,
		)
		pruned++
	}
	return pruned, nil
}

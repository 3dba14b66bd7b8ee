package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/metrics"
	"github.com/roach88/pkgindex/internal/store"
)

// Options configures Open.
type Options struct {
	// Logger receives operation logs. Nil means slog.Default().
	Logger *slog.Logger

	// CreateVersion is the schema version of a newly created index.
	// Zero means store.LatestVersion.
	CreateVersion store.SchemaVersion
}

// Index is an open package index.
type Index struct {
	store    *store.Store
	deps     dependencies.Table
	logger   *slog.Logger
	packaged bool
}

// Key names a manifest by its identity values.
type Key struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Channel string `json:"channel,omitempty"`
}

// KeyOf returns the normalized key of m.
func KeyOf(m *manifest.Manifest) Key {
	return Key{
		ID:      manifest.NormalizeID(m.ID),
		Version: manifest.NormalizeVersion(m.Version),
		Channel: manifest.NormalizeID(m.Channel),
	}
}

func (k Key) normalized() Key {
	return Key{
		ID:      manifest.NormalizeID(k.ID),
		Version: manifest.NormalizeVersion(k.Version),
		Channel: manifest.NormalizeID(k.Channel),
	}
}

// String returns "id@version" or "id@version/channel".
func (k Key) String() string {
	if k.Channel != "" {
		return fmt.Sprintf("%s@%s/%s", k.ID, k.Version, k.Channel)
	}
	return fmt.Sprintf("%s@%s", k.ID, k.Version)
}

// Open opens or creates the index at path. A new index of version 1.4 or
// later gets its dependencies relation in the same transaction that stamps
// its schema version, so a failed creation leaves nothing half-built.
func Open(ctx context.Context, path string, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(path, store.Options{
		Version: opts.CreateVersion,
		Init: func(q store.Querier, version store.SchemaVersion) error {
			if !version.AtLeast(store.Version1_4) {
				return nil
			}
			deps, err := newDependencyTable(q, version, logger)
			if err != nil {
				return err
			}
			return deps.Create(ctx)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	ix := &Index{store: s, logger: logger}
	if err := ix.bindTables(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}

	logger.Debug("index opened",
		"path", path,
		"schema_version", s.Version().String(),
		"created", s.Created(),
	)
	return ix, nil
}

// bindTables selects the dependencies table for the store's version. An
// existing 1.4 index without the relation has been packaged.
func (ix *Index) bindTables(ctx context.Context) error {
	deps, err := newDependencyTable(ix.store.DB(), ix.store.Version(), ix.logger)
	if err != nil {
		return err
	}
	ix.deps = deps

	if ix.store.Created() {
		return nil
	}
	exists, err := store.TableExists(ctx, ix.store.DB(), dependencies.TableName)
	if err != nil {
		return err
	}
	if !exists && ix.store.Version().AtLeast(store.Version1_4) {
		ix.deps = dependencies.NewPackaged(ix.store.Version())
		ix.packaged = true
	}
	return nil
}

func newDependencyTable(q store.Querier, version store.SchemaVersion, logger *slog.Logger) (dependencies.Table, error) {
	return dependencies.New(version, q, dependencies.Tables{
		Packages:  store.IDs.Bind(q),
		Versions:  store.Versions.Bind(q),
		Manifests: store.Manifests.TableName(),
		Logger:    logger,
	})
}

// Packaged reports whether the dependencies relation has been stripped by
// PrepareForPackaging.
func (ix *Index) Packaged() bool {
	return ix.packaged
}

// Close closes the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Version returns the schema version of the index.
func (ix *Index) Version() store.SchemaVersion {
	return ix.store.Version()
}

// DatabaseID returns the identifier stamped on the index at creation.
func (ix *Index) DatabaseID(ctx context.Context) (string, error) {
	return ix.store.DatabaseID(ctx)
}

// Store returns the underlying store.
func (ix *Index) Store() *store.Store {
	return ix.store
}

// DependencyTable returns the dependencies table variant in use.
func (ix *Index) DependencyTable() dependencies.Table {
	return ix.deps
}

// AddManifest indexes m and its package dependencies and returns the new
// manifest row id.
func (ix *Index) AddManifest(ctx context.Context, m *manifest.Manifest) (rowID int64, err error) {
	start := time.Now()
	defer func() { metrics.Observe("add_manifest", start, err) }()

	key := KeyOf(m)
	db := ix.store.DB()

	sp, err := store.BeginSavepoint(ctx, db, "add_manifest")
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}
	defer sp.Rollback()

	idRow, err := store.IDs.Ensure(ctx, db, key.ID)
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}
	versionRow, err := store.Versions.Ensure(ctx, db, key.Version)
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}
	channelRow, err := store.Channels.Ensure(ctx, db, key.Channel)
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}

	_, exists, err := store.Manifests.Find(ctx, db, idRow, versionRow, channelRow)
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}
	if exists {
		return 0, fmt.Errorf("add manifest %s: %w", key, ErrManifestExists)
	}

	rowID, err = store.Manifests.Insert(ctx, db, idRow, versionRow, channelRow)
	if err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}
	if err := ix.deps.Add(ctx, m, rowID); err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, fmt.Errorf("add manifest %s: %w", key, err)
	}

	ix.logger.Info("manifest added",
		"manifest", key.String(),
		"manifest_row", rowID,
	)
	return rowID, nil
}

// UpdateManifest reconciles the stored dependencies of an indexed manifest
// with those m declares. It reports whether m declares any package
// dependency.
func (ix *Index) UpdateManifest(ctx context.Context, m *manifest.Manifest) (declared bool, err error) {
	start := time.Now()
	defer func() { metrics.Observe("update_manifest", start, err) }()

	key := KeyOf(m)
	db := ix.store.DB()

	sp, err := store.BeginSavepoint(ctx, db, "update_manifest")
	if err != nil {
		return false, fmt.Errorf("update manifest %s: %w", key, err)
	}
	defer sp.Rollback()

	rowID, err := ix.findRow(ctx, key)
	if err != nil {
		return false, fmt.Errorf("update manifest %s: %w", key, err)
	}
	declared, err = ix.deps.Update(ctx, m, rowID)
	if err != nil {
		return false, fmt.Errorf("update manifest %s: %w", key, err)
	}

	if err := sp.Commit(ctx); err != nil {
		return false, fmt.Errorf("update manifest %s: %w", key, err)
	}

	ix.logger.Info("manifest updated",
		"manifest", key.String(),
		"manifest_row", rowID,
		"declares_dependencies", declared,
	)
	return declared, nil
}

// RemoveManifest deletes an indexed manifest and its edges, then prunes the
// interned values they referenced that are no longer referenced anywhere.
func (ix *Index) RemoveManifest(ctx context.Context, key Key) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("remove_manifest", start, err) }()

	key = key.normalized()
	db := ix.store.DB()

	sp, err := store.BeginSavepoint(ctx, db, "remove_manifest")
	if err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}
	defer sp.Rollback()

	rowID, err := ix.findRow(ctx, key)
	if err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}

	candidates, err := ix.pruneCandidates(ctx, rowID)
	if err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}

	if err := ix.deps.Remove(ctx, rowID); err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}
	if err := store.Manifests.Delete(ctx, db, rowID); err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}

	pruned, err := ix.prune(ctx, candidates)
	if err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("remove manifest %s: %w", key, err)
	}

	ix.logger.Info("manifest removed",
		"manifest", key.String(),
		"manifest_row", rowID,
		"pruned_values", pruned,
	)
	return nil
}

// findRow returns the manifest row for key, or ErrManifestNotFound.
func (ix *Index) findRow(ctx context.Context, key Key) (int64, error) {
	rowID, ok, err := store.Manifests.FindByValues(ctx, ix.store.DB(), key.ID, key.Version, key.Channel)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrManifestNotFound
	}
	return rowID, nil
}

// Lookup returns the manifest row for key.
func (ix *Index) Lookup(ctx context.Context, key Key) (store.ManifestIdentity, error) {
	rowID, err := ix.findRow(ctx, key.normalized())
	if err != nil {
		return store.ManifestIdentity{}, fmt.Errorf("lookup %s: %w", key, err)
	}
	return store.Manifests.Identity(ctx, ix.store.DB(), rowID)
}

// Manifests returns every indexed manifest ordered by row id.
func (ix *Index) Manifests(ctx context.Context) ([]store.ManifestIdentity, error) {
	return store.Manifests.All(ctx, ix.store.DB())
}

// Migrate upgrades the index to target. Only 1.0 to 1.4 is supported: the
// dependencies relation is created empty, since 1.0 stored no declarations,
// and manifests re-registered through UpdateManifest repopulate it.
func (ix *Index) Migrate(ctx context.Context, target store.SchemaVersion) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("migrate", start, err) }()

	current := ix.store.Version()
	switch {
	case current == target:
		return nil
	case target.Less(current):
		return fmt.Errorf("migrate %s to %s: downgrade not supported", current, target)
	case current != store.Version1_0 || target != store.Version1_4:
		return fmt.Errorf("migrate %s to %s: no migration path", current, target)
	}

	db := ix.store.DB()
	sp, err := store.BeginSavepoint(ctx, db, "migrate_v1_4")
	if err != nil {
		return fmt.Errorf("migrate %s to %s: %w", current, target, err)
	}
	defer sp.Rollback()

	next, err := newDependencyTable(db, target, ix.logger)
	if err != nil {
		return fmt.Errorf("migrate %s to %s: %w", current, target, err)
	}
	if err := next.Create(ctx); err != nil {
		return fmt.Errorf("migrate %s to %s: %w", current, target, err)
	}
	if err := ix.store.SetVersion(ctx, db, target); err != nil {
		return fmt.Errorf("migrate %s to %s: %w", current, target, err)
	}

	if err := sp.Commit(ctx); err != nil {
		// SetVersion already recorded the target in memory.
		ix.restoreVersion(db, current)
		return fmt.Errorf("migrate %s to %s: %w", current, target, err)
	}

	ix.deps = next
	ix.logger.Info("index migrated",
		"from", current.String(),
		"to", target.String(),
	)
	return nil
}

// restoreVersion puts the store's recorded version back to v after an
// aborted migration. A failure is logged; the caller is already returning
// the migration error.
func (ix *Index) restoreVersion(q store.Querier, v store.SchemaVersion) {
	if err := ix.store.SetVersion(context.Background(), q, v); err != nil {
		ix.logger.Error("failed to restore schema version after aborted migration",
			"version", v.String(),
			"error", err,
		)
	}
}

// PrepareForPackaging drops the dependencies relation and compacts the
// file. The index remains readable; dependency reads return nothing.
func (ix *Index) PrepareForPackaging(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.Observe("prepare_for_packaging", start, err) }()

	if err := ix.deps.PrepareForPackaging(ctx); err != nil {
		return fmt.Errorf("prepare for packaging: %w", err)
	}
	ix.deps = dependencies.NewPackaged(ix.store.Version())
	ix.packaged = true

	if err := ix.store.Vacuum(ctx); err != nil {
		return fmt.Errorf("prepare for packaging: %w", err)
	}

	ix.logger.Info("index prepared for packaging")
	return nil
}

package dependencies

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/store"
)

// testEnv is a 1.4 store with the dependencies relation created.
type testEnv struct {
	store *store.Store
	table Table
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, nil)
}

// newTestEnvWithLogger is newTestEnv with the table logging to logger.
func newTestEnvWithLogger(t *testing.T, logger *slog.Logger) *testEnv {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "deps.db"), store.Options{Version: store.Version1_4})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	table, err := New(s.Version(), s.DB(), Tables{
		Packages:  store.IDs.Bind(s.DB()),
		Versions:  store.Versions.Bind(s.DB()),
		Manifests: store.Manifests.TableName(),
		Logger:    logger,
	})
	require.NoError(t, err)
	require.NoError(t, table.Create(context.Background()))

	return &testEnv{store: s, table: table}
}

// registerPackages interns package identifiers so declarations resolve.
func (e *testEnv) registerPackages(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := store.IDs.Ensure(context.Background(), e.store.DB(), id)
		require.NoError(t, err)
	}
}

// insertManifest registers a manifest row (without dependencies) for m.
func (e *testEnv) insertManifest(t *testing.T, m *manifest.Manifest) int64 {
	t.Helper()
	ctx := context.Background()
	db := e.store.DB()

	idRow, err := store.IDs.Ensure(ctx, db, m.ID)
	require.NoError(t, err)
	versionRow, err := store.Versions.Ensure(ctx, db, m.Version)
	require.NoError(t, err)
	channelRow, err := store.Channels.Ensure(ctx, db, m.Channel)
	require.NoError(t, err)

	row, err := store.Manifests.Insert(ctx, db, idRow, versionRow, channelRow)
	require.NoError(t, err)
	return row
}

func (e *testEnv) packageRow(t *testing.T, id string) int64 {
	t.Helper()
	row, ok, err := store.IDs.Find(context.Background(), e.store.DB(), id)
	require.NoError(t, err)
	require.True(t, ok, "package %s not interned", id)
	return row
}

func (e *testEnv) versionRow(t *testing.T, version string) int64 {
	t.Helper()
	row, ok, err := store.Versions.Find(context.Background(), e.store.DB(), version)
	require.NoError(t, err)
	require.True(t, ok, "version %s not interned", version)
	return row
}

func (e *testEnv) edgeCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.store.DB().QueryRow(`SELECT COUNT(*) FROM dependencies`).Scan(&n))
	return n
}

// dep is shorthand for a package declaration.
func dep(id, minVersion string) manifest.Dependency {
	return manifest.Dependency{Kind: manifest.KindPackage, ID: id, MinVersion: minVersion}
}

// withDeps builds a single-installer manifest declaring deps.
func withDeps(id, version string, deps ...manifest.Dependency) *manifest.Manifest {
	return &manifest.Manifest{
		ID:         id,
		Version:    version,
		Installers: []manifest.Installer{{Architecture: "x64", Dependencies: deps}},
	}
}

// edge builds a declared edge; an empty version means none.
func edge(packageRow int64, minVersion string) Edge {
	return Edge{PackageRow: packageRow, MinVersion: nullString(minVersion)}
}

// stripRowIDs zeroes RowID so stored edges compare against declared ones.
func stripRowIDs(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		e.RowID = 0
		out[i] = e
	}
	return out
}

package dependencies

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pkgindex/internal/store"
)

func TestCheckConsistency_FreshStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerPackages(t, "P1", "P2")

	m := withDeps("App", "1.0", dep("P1", "1.0"), dep("P2", ""))
	require.NoError(t, env.table.Add(ctx, m, env.insertManifest(t, m)))

	for _, log := range []bool{false, true} {
		ok, err := env.table.CheckConsistency(ctx, log)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestCheckConsistency_DanglingReferences(t *testing.T) {
	tests := []struct {
		name   string
		delete func(t *testing.T, env *testEnv, manifestRow int64)
	}{
		{
			name: "manifest deleted",
			delete: func(t *testing.T, env *testEnv, manifestRow int64) {
				require.NoError(t, store.Manifests.Delete(context.Background(), env.store.DB(), manifestRow))
			},
		},
		{
			name: "package deleted",
			delete: func(t *testing.T, env *testEnv, _ int64) {
				require.NoError(t, store.IDs.Delete(context.Background(), env.store.DB(), env.packageRow(t, "P1")))
			},
		},
		{
			name: "version deleted",
			delete: func(t *testing.T, env *testEnv, _ int64) {
				require.NoError(t, store.Versions.Delete(context.Background(), env.store.DB(), env.versionRow(t, "9.9")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.registerPackages(t, "P1")

			m := withDeps("App", "1.0", dep("P1", "9.9"))
			row := env.insertManifest(t, m)
			require.NoError(t, env.table.Add(ctx, m, row))

			tt.delete(t, env, row)

			for _, log := range []bool{false, true} {
				ok, err := env.table.CheckConsistency(ctx, log)
				require.NoError(t, err)
				assert.False(t, ok, "log=%v", log)
			}
		})
	}
}

func TestIsValueReferenced_VersionBeforeAndAfterRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerPackages(t, "P1")

	m := withDeps("App", "2.0", dep("P1", "1.0"))
	row := env.insertManifest(t, m)
	require.NoError(t, env.table.Add(ctx, m, row))

	edges, err := env.table.Dependencies(ctx, row)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	versionRow := env.versionRow(t, "1.0")
	edgeRow, ok, err := env.table.IsValueReferenced(ctx, ColumnMinVersion, versionRow)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, edges[0].RowID, edgeRow)

	require.NoError(t, env.table.Remove(ctx, row))

	_, ok, err = env.table.IsValueReferenced(ctx, ColumnMinVersion, versionRow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValueReferenced_ManifestAndPackageColumns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerPackages(t, "P1", "P2")

	m := withDeps("App", "1.0", dep("P1", ""))
	row := env.insertManifest(t, m)
	require.NoError(t, env.table.Add(ctx, m, row))

	_, ok, err := env.table.IsValueReferenced(ctx, ColumnManifest, row)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = env.table.IsValueReferenced(ctx, ColumnPackage, env.packageRow(t, "P1"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = env.table.IsValueReferenced(ctx, ColumnPackage, env.packageRow(t, "P2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValueReferenced_InvalidColumn(t *testing.T) {
	env := newTestEnv(t)

	for _, column := range []string{"rowid", "version", "", "min_version; DROP TABLE ids"} {
		_, _, err := env.table.IsValueReferenced(context.Background(), column, 1)
		require.Error(t, err, column)
		assert.True(t, IsInvalidColumn(err), column)
	}
}

func TestCheckConsistency_LogsEveryViolationToTableLogger(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnvWithLogger(t, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()
	env.registerPackages(t, "P1", "P2")

	m := withDeps("App", "1.0", dep("P1", ""), dep("P2", ""))
	row := env.insertManifest(t, m)
	require.NoError(t, env.table.Add(ctx, m, row))
	require.NoError(t, store.Manifests.Delete(ctx, env.store.DB(), row))

	ok, err := env.table.CheckConsistency(ctx, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "short-circuit scan logs nothing")

	ok, err = env.table.CheckConsistency(ctx, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "violation_row=1")
	assert.Contains(t, buf.String(), "violation_row=2")
}

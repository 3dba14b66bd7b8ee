package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertManifest interns the values and inserts a manifest row.
func insertManifest(t *testing.T, s *Store, id, version, channel string) int64 {
	t.Helper()
	ctx := context.Background()

	idRow, err := IDs.Ensure(ctx, s.db, id)
	require.NoError(t, err)
	versionRow, err := Versions.Ensure(ctx, s.db, version)
	require.NoError(t, err)
	channelRow, err := Channels.Ensure(ctx, s.db, channel)
	require.NoError(t, err)

	rowID, err := Manifests.Insert(ctx, s.db, idRow, versionRow, channelRow)
	require.NoError(t, err)
	return rowID
}

func TestManifestTable_InsertAndIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rowID := insertManifest(t, s, "Contoso.App", "1.0", "")

	m, err := Manifests.Identity(ctx, s.db, rowID)
	require.NoError(t, err)
	assert.Equal(t, ManifestIdentity{RowID: rowID, ID: "Contoso.App", Version: "1.0"}, m)
	assert.Equal(t, "Contoso.App@1.0", m.String())
}

func TestManifestTable_DuplicateIdentityFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	insertManifest(t, s, "A", "1.0", "")

	idRow, _, _ := IDs.Find(ctx, s.db, "A")
	versionRow, _, _ := Versions.Find(ctx, s.db, "1.0")
	channelRow, _, _ := Channels.Find(ctx, s.db, "")

	_, err := Manifests.Insert(ctx, s.db, idRow, versionRow, channelRow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
}

func TestManifestTable_FindByValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := insertManifest(t, s, "A", "1.0", "beta")

	got, ok, err := Manifests.FindByValues(ctx, s.db, "A", "1.0", "beta")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	_, ok, err = Manifests.FindByValues(ctx, s.db, "A", "1.0", "")
	require.NoError(t, err)
	assert.False(t, ok, "channel \"\" was never interned")

	_, ok, err = Manifests.FindByValues(ctx, s.db, "A", "2.0", "beta")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManifestTable_AllAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	all, err := Manifests.All(ctx, s.db)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	a := insertManifest(t, s, "A", "1.0", "")
	b := insertManifest(t, s, "B", "2.0", "")

	all, err = Manifests.All(ctx, s.db)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a, all[0].RowID)
	assert.Equal(t, b, all[1].RowID)

	require.NoError(t, Manifests.Delete(ctx, s.db, a))

	_, err = Manifests.Identity(ctx, s.db, a)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, _, _, err = Manifests.Refs(ctx, s.db, a)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManifestTable_IsValueReferenced(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rowID := insertManifest(t, s, "A", "1.0", "")
	idRow, versionRow, channelRow, err := Manifests.Refs(ctx, s.db, rowID)
	require.NoError(t, err)

	for column, ref := range map[string]int64{
		ManifestIDColumn:      idRow,
		ManifestVersionColumn: versionRow,
		ManifestChannelColumn: channelRow,
	} {
		ok, err := Manifests.IsValueReferenced(ctx, s.db, column, ref)
		require.NoError(t, err)
		assert.True(t, ok, column)
	}

	ok, err := Manifests.IsValueReferenced(ctx, s.db, ManifestVersionColumn, versionRow+100)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Manifests.IsValueReferenced(ctx, s.db, "rowid", rowID)
	assert.Error(t, err)
}

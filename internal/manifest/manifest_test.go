package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	data := []byte(`
id: Contoso.App
name: Contoso App
version: "2.1.0"
installers:
  - architecture: x64
    dependencies:
      - id: Contoso.Runtime
        min_version: "1.4"
      - kind: windows_feature
        id: NetFx3
  - architecture: arm64
    dependencies:
      - id: Contoso.Shared
`)

	m, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "Contoso.App", m.ID)
	assert.Equal(t, "2.1.0", m.Version)
	assert.Empty(t, m.Channel)
	require.Len(t, m.Installers, 2)
	assert.Len(t, m.Installers[0].Dependencies, 2)
	assert.Equal(t, "Contoso.App@2.1.0", m.String())
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", `version: "1.0"`},
		{"empty id", "id: \"\"\nversion: \"1.0\""},
		{"missing version", `id: A`},
		{"numeric version", "id: A\nversion: 1.0"},
		{"unknown field", "id: A\nversion: \"1\"\npublisher: X"},
		{"unknown kind", "id: A\nversion: \"1\"\ninstallers:\n  - dependencies:\n      - kind: npm\n        id: B"},
		{"empty min version", "id: A\nversion: \"1\"\ninstallers:\n  - dependencies:\n      - id: B\n        min_version: \"\""},
		{"empty document", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest), "expected ErrInvalidManifest, got %v", err)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("id: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse manifest")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: A\nversion: \"1.0\"\nchannel: beta\n"), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "A@1.0/beta", m.String())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
}

func TestDependencies_FiltersKindAcrossInstallers(t *testing.T) {
	m := &Manifest{
		ID:      "A",
		Version: "1",
		Installers: []Installer{
			{Dependencies: []Dependency{
				{ID: "C"},
				{Kind: KindWindowsFeature, ID: "NetFx3"},
			}},
			{Dependencies: []Dependency{
				{Kind: KindPackage, ID: "B", MinVersion: "2.0"},
			}},
		},
	}

	deps := m.Dependencies(KindPackage)
	require.Len(t, deps, 2)
	assert.Equal(t, Dependency{Kind: KindPackage, ID: "B", MinVersion: "2.0"}, deps[0])
	assert.Equal(t, Dependency{Kind: KindPackage, ID: "C"}, deps[1])

	features := m.Dependencies(KindWindowsFeature)
	require.Len(t, features, 1)
	assert.Equal(t, "NetFx3", features[0].ID)

	assert.Empty(t, m.Dependencies(KindExternal))
}

func TestDependencies_CollapsesDuplicatesToStrictest(t *testing.T) {
	m := &Manifest{
		Installers: []Installer{
			{Dependencies: []Dependency{{ID: "B"}}},
			{Dependencies: []Dependency{{ID: "B", MinVersion: "1.10"}}},
			{Dependencies: []Dependency{{ID: "B", MinVersion: "1.9"}}},
			{Dependencies: []Dependency{{ID: " B "}}},
		},
	}

	deps := m.Dependencies(KindPackage)
	require.Len(t, deps, 1)
	assert.Equal(t, "B", deps[0].ID)
	assert.Equal(t, "1.10", deps[0].MinVersion)
}

func TestDependencies_DoesNotMutateManifest(t *testing.T) {
	m := &Manifest{
		Installers: []Installer{
			{Dependencies: []Dependency{{ID: " B ", MinVersion: " 1.0 "}}},
		},
	}

	_ = m.Dependencies(KindPackage)

	assert.Equal(t, " B ", m.Installers[0].Dependencies[0].ID)
	assert.Equal(t, " 1.0 ", m.Installers[0].Dependencies[0].MinVersion)
	assert.Equal(t, DependencyKind(""), m.Installers[0].Dependencies[0].Kind)
}

func TestNormalizeID_NFC(t *testing.T) {
	// "é" as e + combining acute vs precomposed.
	decomposed := "Cafe\u0301"
	precomposed := "Caf\u00e9"
	assert.Equal(t, precomposed, NormalizeID(decomposed))
	assert.Equal(t, precomposed, NormalizeID("  "+precomposed+"\t"))
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.2", "1.10", -1},
		{"2", "1.99.99", 1},
		{"1.0.0.1", "1.0", 1},
		{"1.0-beta", "1.0-Beta", 0},
		{"1.alpha", "1.0", 1},
		{"1.alpha", "1.beta", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareVersions(tt.b, tt.a))
		})
	}
}

package testutil

import (
	"github.com/roach88/pkgindex/internal/manifest"
)

// ManifestBuilder assembles manifests for tests.
//
// Dependencies attach to the most recently added installer; if none was
// added, an "x64" installer is created on first use.
//
//	m := testutil.NewManifest("Contoso.App", "1.0").
//		DependsOn("Contoso.Runtime", "2.0").
//		Installer("arm64").
//		DependsOn("Contoso.Runtime", "").
//		Build()
type ManifestBuilder struct {
	m manifest.Manifest
}

// NewManifest starts a manifest with the given identity.
func NewManifest(id, version string) *ManifestBuilder {
	return &ManifestBuilder{m: manifest.Manifest{ID: id, Version: version}}
}

// Channel sets the manifest channel.
func (b *ManifestBuilder) Channel(channel string) *ManifestBuilder {
	b.m.Channel = channel
	return b
}

// Installer appends an installer for the given architecture.
func (b *ManifestBuilder) Installer(architecture string) *ManifestBuilder {
	b.m.Installers = append(b.m.Installers, manifest.Installer{Architecture: architecture})
	return b
}

// DependsOn declares a package dependency. An empty minVersion means none.
func (b *ManifestBuilder) DependsOn(id, minVersion string) *ManifestBuilder {
	return b.Requires(manifest.Dependency{Kind: manifest.KindPackage, ID: id, MinVersion: minVersion})
}

// Requires declares an arbitrary dependency.
func (b *ManifestBuilder) Requires(dep manifest.Dependency) *ManifestBuilder {
	if len(b.m.Installers) == 0 {
		b.Installer("x64")
	}
	last := &b.m.Installers[len(b.m.Installers)-1]
	last.Dependencies = append(last.Dependencies, dep)
	return b
}

// Build returns a copy of the manifest. The builder can keep being used.
func (b *ManifestBuilder) Build() *manifest.Manifest {
	m := b.m
	m.Installers = make([]manifest.Installer, len(b.m.Installers))
	for i, inst := range b.m.Installers {
		inst.Dependencies = append([]manifest.Dependency(nil), inst.Dependencies...)
		m.Installers[i] = inst
	}
	return &m
}

package manifest

import (
	"fmt"
	"sort"
)

// DependencyKind categorizes a declared dependency.
type DependencyKind string

const (
	// KindPackage is a dependency on another package in the index.
	KindPackage DependencyKind = "package"

	// KindWindowsFeature is a dependency on an optional OS feature.
	KindWindowsFeature DependencyKind = "windows_feature"

	// KindWindowsLibrary is a dependency on a system library.
	KindWindowsLibrary DependencyKind = "windows_library"

	// KindExternal is a dependency satisfied outside the package manager.
	KindExternal DependencyKind = "external"
)

// Dependency is a single declaration inside an installer.
type Dependency struct {
	// Kind defaults to KindPackage when empty.
	Kind DependencyKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// ID is the target package identifier (or feature/library name).
	ID string `yaml:"id" json:"id"`

	// MinVersion is the minimum required version. Empty means no minimum.
	MinVersion string `yaml:"min_version,omitempty" json:"min_version,omitempty"`
}

// EffectiveKind returns the declared kind, treating empty as KindPackage.
func (d Dependency) EffectiveKind() DependencyKind {
	if d.Kind == "" {
		return KindPackage
	}
	return d.Kind
}

// HasMinVersion reports whether a minimum version is declared.
func (d Dependency) HasMinVersion() bool {
	return d.MinVersion != ""
}

// Installer is one installable artifact of a manifest.
type Installer struct {
	Architecture string       `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	URL          string       `yaml:"url,omitempty" json:"url,omitempty"`
	Dependencies []Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Manifest describes one version of a package on one channel.
type Manifest struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name,omitempty" json:"name,omitempty"`
	Version    string      `yaml:"version" json:"version"`
	Channel    string      `yaml:"channel,omitempty" json:"channel,omitempty"`
	Installers []Installer `yaml:"installers" json:"installers"`
}

// String returns "id@version" or "id@version/channel".
func (m *Manifest) String() string {
	if m.Channel != "" {
		return fmt.Sprintf("%s@%s/%s", m.ID, m.Version, m.Channel)
	}
	return fmt.Sprintf("%s@%s", m.ID, m.Version)
}

// Dependencies returns the declarations of the given kind across all
// installers, normalized and deduplicated by identifier.
//
// When several installers declare the same identifier, the declaration with
// the greatest minimum version wins; any declared minimum beats none.
// Results are sorted by identifier. The manifest is not modified.
func (m *Manifest) Dependencies(kind DependencyKind) []Dependency {
	byID := make(map[string]Dependency)
	for _, inst := range m.Installers {
		for _, dep := range inst.Dependencies {
			if dep.EffectiveKind() != kind {
				continue
			}
			norm := Dependency{
				Kind:       kind,
				ID:         NormalizeID(dep.ID),
				MinVersion: NormalizeVersion(dep.MinVersion),
			}
			existing, ok := byID[norm.ID]
			if !ok || stricter(norm, existing) {
				byID[norm.ID] = norm
			}
		}
	}

	deps := make([]Dependency, 0, len(byID))
	for _, dep := range byID {
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
	return deps
}

// stricter reports whether a demands a higher minimum than b.
func stricter(a, b Dependency) bool {
	switch {
	case !a.HasMinVersion():
		return false
	case !b.HasMinVersion():
		return true
	default:
		return CompareVersions(a.MinVersion, b.MinVersion) > 0
	}
}

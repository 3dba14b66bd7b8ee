package store

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion identifies the table layout of an index.
//
// The version is persisted as PRAGMA user_version = major*100 + minor;
// user_version 0 means the file has no schema yet.
type SchemaVersion struct {
	Major int
	Minor int
}

// Known schema versions.
var (
	// Version1_0 has the interned value tables and the manifest table.
	Version1_0 = SchemaVersion{Major: 1, Minor: 0}

	// Version1_4 adds the dependencies relation.
	Version1_4 = SchemaVersion{Major: 1, Minor: 4}

	// LatestVersion is used for new stores when no version is requested.
	LatestVersion = Version1_4
)

var supportedVersions = []SchemaVersion{Version1_0, Version1_4}

// String returns "major.minor".
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsZero reports whether v is the zero value.
func (v SchemaVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// Less reports whether v precedes o.
func (v SchemaVersion) Less(o SchemaVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// AtLeast reports whether v is o or newer.
func (v SchemaVersion) AtLeast(o SchemaVersion) bool {
	return !v.Less(o)
}

// Supported reports whether this build knows how to open v.
func (v SchemaVersion) Supported() bool {
	for _, s := range supportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

func (v SchemaVersion) userVersion() int {
	return v.Major*100 + v.Minor
}

func versionFromUser(n int) (SchemaVersion, bool) {
	v := SchemaVersion{Major: n / 100, Minor: n % 100}
	return v, v.Supported()
}

// ParseSchemaVersion parses "major.minor". The string "latest" returns
// LatestVersion.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	if s == "latest" {
		return LatestVersion, nil
	}
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return SchemaVersion{}, fmt.Errorf("invalid schema version %q: want major.minor", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("invalid schema version %q: %w", s, err)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("invalid schema version %q: %w", s, err)
	}
	v := SchemaVersion{Major: ma, Minor: mi}
	if !v.Supported() {
		return SchemaVersion{}, fmt.Errorf("unsupported schema version %s", v)
	}
	return v, nil
}

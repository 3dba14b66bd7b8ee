package index

import "errors"

var (
	// ErrManifestExists is returned by AddManifest when a manifest with the
	// same id, version and channel is already indexed.
	ErrManifestExists = errors.New("manifest already indexed")

	// ErrManifestNotFound is returned when the manifest named by a key is
	// not indexed.
	ErrManifestNotFound = errors.New("manifest not indexed")
)

// Package manifest holds the installable package manifest model consumed by
// the dependency index.
//
// A manifest identifies one version of a package on one channel and carries
// an ordered list of installers. Each installer declares dependencies of a
// kind (package, Windows feature, Windows library, external); only package
// dependencies are stored by the index.
//
// Manifests are read from YAML and validated against an embedded CUE schema
// before decoding:
//
//	id: Contoso.App
//	version: "2.1.0"
//	installers:
//	  - architecture: x64
//	    dependencies:
//	      - id: Contoso.Runtime
//	        min_version: "1.4"
//	      - kind: windows_feature
//	        id: NetFx3
//
// Identifiers and versions are NFC-normalized so that visually identical
// strings intern to the same row.
package manifest

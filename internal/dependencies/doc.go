// Package dependencies owns the dependencies relation of the package index:
// for every manifest, the packages it depends on and the minimum version it
// requires of each.
//
// # Relation
//
//	dependencies(rowid, manifest, min_version NULL, package_id)
//	  UNIQUE (manifest, package_id)         dependencies_pkindex
//	  INDEX  (min_version)                  dependencies_min_version_index
//	  INDEX  (package_id)                   dependencies_package_id_index
//
// manifest references manifest.rowid, package_id references ids.rowid and
// min_version references versions.rowid. A manifest has at most one edge per
// package; the minimum version is not part of the edge's identity.
//
// # Writes
//
// Add, Update, Remove, Create and PrepareForPackaging each run inside a named
// savepoint and leave the store untouched on failure. Declared package
// identifiers are resolved against the identifier table before anything is
// written; unknown identifiers fail the whole call with an
// UNRESOLVABLE_DEPENDENCY error listing every one of them.
//
// Update reconciles instead of rewriting: Diff computes the edges to add and
// remove, removals are applied first (by (package_id, manifest) key) and
// inserts second, so unchanged edges keep their rowids and the unique index
// is never transiently violated.
//
// # Integrity
//
// CheckConsistency finds edges whose manifest, package or minimum version row
// no longer exists. IsValueReferenced answers whether any edge still points at
// a row through one of the three reference columns, which callers check
// before deleting an interned value.
//
// # Schema Versions
//
// New selects the implementation for a store's schema version: 1.4 and later
// get the relation above; 1.0 has no relation and every operation is an empty
// no-op.
package dependencies

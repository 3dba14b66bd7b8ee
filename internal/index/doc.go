// Package index is the entry point for reading and writing a package index.
//
// An Index wraps a store.Store and the dependencies.Table variant matching
// the store's schema version. Every write runs inside one outer savepoint,
// with the dependencies table nesting its own savepoint inside it:
//
//	AddManifest     intern id/version/channel, insert manifest, add edges
//	UpdateManifest  reconcile the edges of an existing manifest
//	RemoveManifest  delete edges and manifest, then prune interned values
//	                that nothing references any more
//
// Packages must be registered before anything can depend on them: adding a
// manifest whose dependency names an identifier that no manifest has
// introduced fails with an unresolvable dependency error and writes nothing.
//
// Reads materialize row ids back into identities (DependentManifests,
// Dependencies). Migrate upgrades a 1.0 index to 1.4 and PrepareForPackaging
// strips the dependencies relation before the file is shipped.
package index

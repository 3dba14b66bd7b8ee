// Package harness runs YAML scenarios against a fresh package index and
// snapshots the resulting dependency edges.
//
// # Scenario Format
//
//	name: reconcile_update
//	description: "Update replaces a changed minimum version"
//	schema_version: "1.4"          # optional, default latest
//	steps:
//	  - add:
//	      id: Contoso.Runtime
//	      version: "2.0"
//	  - add:
//	      id: Contoso.App
//	      version: "1.0"
//	      installers:
//	        - dependencies:
//	            - id: Contoso.Runtime
//	              min_version: "1.0"
//	  - update: { ... }            # same shape as add
//	  - remove: { id: Contoso.App, version: "1.0" }
//	    expect:
//	      error: MANIFEST_NOT_FOUND
//	  - migrate: "1.4"
//	  - package: true
//	assertions:
//	  - type: dependencies
//	    manifest: { id: Contoso.App, version: "1.0" }
//	    expect:
//	      - { package: Contoso.Runtime, min_version: "2.0" }
//	  - type: dependents
//	    package: Contoso.Runtime
//	    count: 1
//	  - type: edge_count
//	    count: 1
//	  - type: consistent
//	  - type: referenced
//	    column: min_version
//	    value: "1.0"
//	    referenced: false
//
// Every step succeeds unless it carries an expect clause naming the error
// it must fail with. Manifests are given inline in the manifest file shape
// and validated the same way.
//
// # Deterministic Snapshots
//
// Each scenario runs in its own in-memory SQLite database. Row ids depend
// only on step order, so the snapshot taken by RunWithGolden (the step
// trace plus every manifest's materialized edges) is byte-identical across
// runs and can be compared against testdata/golden/<name>.golden.
package harness

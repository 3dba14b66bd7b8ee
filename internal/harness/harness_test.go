package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return scenario
}

func TestRun_AddRecordsEdges(t *testing.T) {
	scenario := mustParse(t, `
name: add_records_edges
description: Add stores one edge per distinct package
steps:
  - add:
      id: Lib
      version: "1.0"
  - add:
      id: App
      version: "1.0"
      installers:
        - architecture: x64
          dependencies:
            - id: Lib
              min_version: "1.0"
        - architecture: arm64
          dependencies:
            - id: Lib
              min_version: "1.5"
assertions:
  - type: dependencies
    manifest: {id: App, version: "1.0"}
    expect:
      - package: Lib
        min_version: "1.5"
  - type: dependents
    package: Lib
    count: 1
  - type: edge_count
    count: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, int64(2), result.Trace[1].Row)
	assert.Equal(t, "1.4", result.State.SchemaVersion, "empty schema_version means latest")
	assert.Equal(t, []EdgeSnapshot{{Manifest: "App@1.0", Package: "Lib", MinVersion: "1.5"}}, result.State.Edges)
	assert.True(t, result.State.Consistent)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := mustParse(t, `
name: unexpected_error
description: A failing step without expect fails the scenario
steps:
  - add:
      id: App
      version: "1.0"
      installers:
        - dependencies:
            - id: Missing.B
            - id: Missing.A
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] (add App@1.0): unexpected error")

	require.Len(t, result.Trace, 1)
	assert.Equal(t, ErrorUnresolvable, result.Trace[0].Outcome)
	assert.Equal(t, []string{"Missing.A", "Missing.B"}, result.Trace[0].Missing)
	assert.Empty(t, result.State.Manifests, "failed add leaves nothing behind")
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: expect_mismatch
description: Expect clauses are checked for code and missing packages
steps:
  - add:
      id: Lib
      version: "1.0"
    expect:
      error: MANIFEST_EXISTS
  - add:
      id: App
      version: "1.0"
      installers:
        - dependencies:
            - id: Missing.A
    expect:
      error: UNRESOLVABLE_DEPENDENCY
      missing: [Missing.B]
  - remove: {id: Lib, version: "9.9"}
    expect:
      error: MANIFEST_EXISTS
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected error MANIFEST_EXISTS, got success")
	assert.Contains(t, result.Errors[1], "expected missing packages [Missing.B], got [Missing.A]")
	assert.Contains(t, result.Errors[2], "expected error MANIFEST_EXISTS, got MANIFEST_NOT_FOUND")
}

func TestRun_InvalidInlineManifest(t *testing.T) {
	scenario := mustParse(t, `
name: invalid_manifest
description: Inline manifests go through schema validation
steps:
  - add:
      id: App
      version: 1.0
    expect:
      error: INVALID_MANIFEST
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ErrorInvalidManifest, result.Trace[0].Outcome)
	assert.Empty(t, result.Trace[0].Target)
}

func TestRun_AssertionFailures(t *testing.T) {
	scenario := mustParse(t, `
name: assertion_failures
description: Failing assertions are reported with their position
steps:
  - add:
      id: Lib
      version: "1.0"
  - add:
      id: App
      version: "1.0"
      installers:
        - dependencies:
            - id: Lib
assertions:
  - type: dependencies
    manifest: {id: App, version: "1.0"}
    expect:
      - package: Lib
        min_version: "2.0"
  - type: edge_count
    count: 3
  - type: consistent
    consistent: false
  - type: referenced
    column: package_id
    value: Lib
    referenced: false
  - type: referenced
    column: min_version
    value: "7.0"
    referenced: false
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "assertions[0]: Assertion failed: dependencies")
	assert.Contains(t, result.Errors[0], "Actual: [Lib]")
	assert.Contains(t, result.Errors[1], "assertions[1]: Assertion failed: edge_count")
	assert.Contains(t, result.Errors[2], "assertions[2]: Assertion failed: consistent")
	assert.Contains(t, result.Errors[3], "assertions[3]: Assertion failed: referenced")
}

func TestRun_SchemaVersion1_0(t *testing.T) {
	scenario := mustParse(t, `
name: schema_1_0
description: A 1.0 index accepts declarations without storing edges
schema_version: "1.0"
steps:
  - add:
      id: App
      version: "1.0"
      installers:
        - dependencies:
            - id: Never.Registered
  - update:
      id: App
      version: "1.0"
assertions:
  - type: edge_count
    count: 0
  - type: dependents
    package: Never.Registered
    count: 0
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "1.0", result.State.SchemaVersion)
	require.NotNil(t, result.Trace[1].Declared)
	assert.False(t, *result.Trace[1].Declared)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEdgeCount,
		Expected: "2 edges",
		Actual:   "1 edges",
		Edges:    []EdgeSnapshot{{Manifest: "App@1.0", Package: "Lib", MinVersion: "1.5"}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: edge_count")
	assert.Contains(t, msg, "Expected: 2 edges")
	assert.Contains(t, msg, "Actual: 1 edges")
	assert.Contains(t, msg, "[1] App@1.0 -> Lib >= 1.5")
}

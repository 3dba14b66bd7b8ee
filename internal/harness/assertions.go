package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Edges    []EdgeSnapshot // Final edges for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Edges) > 0 {
		fmt.Fprintf(&buf, "\nEdges:\n")
		for i, edge := range e.Edges {
			fmt.Fprintf(&buf, "  [%d] %s -> %s", i+1, edge.Manifest, edge.Package)
			if edge.MinVersion != "" {
				fmt.Fprintf(&buf, " >= %s", edge.MinVersion)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, prefixed with the assertion's position.
func EvaluateAssertions(ctx context.Context, ix *index.Index, state State, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(ctx, ix, state, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, ix *index.Index, state State, a Assertion) error {
	switch a.Type {
	case AssertDependencies:
		return assertDependencies(ctx, ix, state, a)
	case AssertDependents:
		return assertDependents(ctx, ix, state, a)
	case AssertEdgeCount:
		return assertEdgeCount(state, a)
	case AssertConsistent:
		return assertConsistent(ctx, ix, state, a)
	case AssertReferenced:
		return assertReferenced(ctx, ix, state, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertDependencies compares a manifest's stored edges with the expected
// list, in package-row order.
func assertDependencies(ctx context.Context, ix *index.Index, state State, a Assertion) error {
	reqs, err := ix.Dependencies(ctx, *a.Manifest)
	if err != nil {
		return fmt.Errorf("dependencies of %s: %w", a.Manifest, err)
	}

	actual := make([]string, len(reqs))
	for i, r := range reqs {
		actual[i] = formatEdge(r.PackageID, r.MinVersion)
	}
	expected := make([]string, len(a.Expect))
	for i, e := range a.Expect {
		expected[i] = formatEdge(manifest.NormalizeID(e.Package), e.MinVersion)
	}

	if strings.Join(actual, ",") != strings.Join(expected, ",") {
		return &AssertionError{
			Type:     AssertDependencies,
			Expected: fmt.Sprintf("%s depends on [%s]", a.Manifest, strings.Join(expected, ", ")),
			Actual:   fmt.Sprintf("[%s]", strings.Join(actual, ", ")),
			Edges:    state.Edges,
		}
	}
	return nil
}

func assertDependents(ctx context.Context, ix *index.Index, state State, a Assertion) error {
	dependents, err := ix.Dependents(ctx, a.Package)
	if err != nil {
		return fmt.Errorf("dependents of %s: %w", a.Package, err)
	}
	if len(dependents) != *a.Count {
		return &AssertionError{
			Type:     AssertDependents,
			Expected: fmt.Sprintf("%d dependents of %s", *a.Count, a.Package),
			Actual:   fmt.Sprintf("%d dependents", len(dependents)),
			Edges:    state.Edges,
		}
	}
	return nil
}

func assertEdgeCount(state State, a Assertion) error {
	if len(state.Edges) != *a.Count {
		return &AssertionError{
			Type:     AssertEdgeCount,
			Expected: fmt.Sprintf("%d edges", *a.Count),
			Actual:   fmt.Sprintf("%d edges", len(state.Edges)),
			Edges:    state.Edges,
		}
	}
	return nil
}

// assertConsistent runs the logging scan so violations show up in the
// harness logger.
func assertConsistent(ctx context.Context, ix *index.Index, state State, a Assertion) error {
	want := true
	if a.Consistent != nil {
		want = *a.Consistent
	}

	ok, err := ix.CheckConsistency(ctx, true)
	if err != nil {
		return fmt.Errorf("consistency scan: %w", err)
	}
	if ok != want {
		return &AssertionError{
			Type:     AssertConsistent,
			Expected: fmt.Sprintf("consistent=%t", want),
			Actual:   fmt.Sprintf("consistent=%t", ok),
			Edges:    state.Edges,
		}
	}
	return nil
}

// assertReferenced resolves Value to its interned row first. A value that
// is not interned cannot be referenced.
func assertReferenced(ctx context.Context, ix *index.Index, state State, a Assertion) error {
	table, value := store.Versions, manifest.NormalizeVersion(a.Value)
	if a.Column == dependencies.ColumnPackage {
		table, value = store.IDs, manifest.NormalizeID(a.Value)
	}

	referenced := false
	row, ok, err := table.Find(ctx, ix.Store().DB(), value)
	if err != nil {
		return fmt.Errorf("find %s %q: %w", a.Column, a.Value, err)
	}
	if ok {
		_, referenced, err = ix.IsValueReferenced(ctx, a.Column, row)
		if err != nil {
			return fmt.Errorf("reference check on %s %q: %w", a.Column, a.Value, err)
		}
	}

	if referenced != *a.Referenced {
		return &AssertionError{
			Type:     AssertReferenced,
			Expected: fmt.Sprintf("%s %q referenced=%t", a.Column, a.Value, *a.Referenced),
			Actual:   fmt.Sprintf("referenced=%t", referenced),
			Edges:    state.Edges,
		}
	}
	return nil
}

func formatEdge(packageID, minVersion string) string {
	if minVersion == "" {
		return packageID
	}
	return packageID + ">=" + minVersion
}

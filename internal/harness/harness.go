package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/manifest"
	"github.com/roach88/pkgindex/internal/store"
	"github.com/roach88/pkgindex/internal/testutil"
)

// Harness executes scenario steps against one index.
type Harness struct {
	ix     *index.Index
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create an in-memory index at the scenario's schema version
// 2. Execute steps, checking each against its expect clause
// 3. Snapshot manifests and edges
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	version := store.SchemaVersion{}
	if scenario.SchemaVersion != "" {
		v, err := store.ParseSchemaVersion(scenario.SchemaVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version: %w", err)
		}
		version = v
	}

	logger := testutil.DiscardLogger() // Suppress logs in tests
	ix, err := index.Open(ctx, ":memory:", index.Options{
		Logger:        logger,
		CreateVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	defer ix.Close()

	h := &Harness{ix: ix, logger: logger}
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}

	state, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot index: %w", err)
	}
	result.State = state

	for _, msg := range EvaluateAssertions(ctx, ix, state, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step and records it in the trace. Index errors are
// step outcomes, not execution failures; only an unknown operation returns
// an error.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	event := TraceEvent{Op: step.Op()}
	var err error

	switch event.Op {
	case OpAdd:
		var m *manifest.Manifest
		m, err = decodeManifest(&step.Add)
		if err == nil {
			event.Target = index.KeyOf(m).String()
			event.Row, err = h.ix.AddManifest(ctx, m)
		}
	case OpUpdate:
		var m *manifest.Manifest
		m, err = decodeManifest(&step.Update)
		if err == nil {
			event.Target = index.KeyOf(m).String()
			var declared bool
			declared, err = h.ix.UpdateManifest(ctx, m)
			if err == nil {
				event.Declared = &declared
			}
		}
	case OpRemove:
		event.Target = step.Remove.String()
		err = h.ix.RemoveManifest(ctx, *step.Remove)
	case OpMigrate:
		event.Target = step.Migrate
		var target store.SchemaVersion
		target, err = store.ParseSchemaVersion(step.Migrate)
		if err == nil {
			err = h.ix.Migrate(ctx, target)
		}
	case OpPackage:
		err = h.ix.PrepareForPackaging(ctx)
	default:
		return fmt.Errorf("unknown operation %q", event.Op)
	}

	event.Outcome = OutcomeOK
	if err != nil {
		event.Outcome = errorCode(err)
		event.Missing = dependencies.MissingPackages(err)
		event.Row = 0
	}
	result.AddTrace(event)

	h.checkExpectation(i, event, err, step.Expect, result)

	h.logger.Info("step completed",
		"step", i,
		"op", event.Op,
		"target", event.Target,
		"outcome", event.Outcome,
	)
	return nil
}

// checkExpectation compares a step's outcome with its expect clause.
func (h *Harness) checkExpectation(i int, event TraceEvent, err error, expect *ExpectClause, result *Result) {
	prefix := fmt.Sprintf("steps[%d] (%s %s)", i, event.Op, event.Target)

	if expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
		}
		return
	}

	if err == nil {
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", prefix, expect.Error))
		return
	}
	if event.Outcome != expect.Error {
		result.AddError(fmt.Sprintf("%s: expected error %s, got %s: %v", prefix, expect.Error, event.Outcome, err))
		return
	}
	if len(expect.Missing) > 0 && !slices.Equal(expect.Missing, event.Missing) {
		result.AddError(fmt.Sprintf("%s: expected missing packages %v, got %v", prefix, expect.Missing, event.Missing))
	}
}

// snapshot materializes every manifest and its edges.
func (h *Harness) snapshot(ctx context.Context) (State, error) {
	state := State{
		SchemaVersion: h.ix.Version().String(),
		Manifests:     []string{},
		Edges:         []EdgeSnapshot{},
	}

	manifests, err := h.ix.Manifests(ctx)
	if err != nil {
		return State{}, err
	}
	for _, m := range manifests {
		key := index.Key{ID: m.ID, Version: m.Version, Channel: m.Channel}
		state.Manifests = append(state.Manifests, key.String())

		deps, err := h.ix.Dependencies(ctx, key)
		if err != nil {
			return State{}, err
		}
		for _, d := range deps {
			state.Edges = append(state.Edges, EdgeSnapshot{
				Manifest:   key.String(),
				Package:    d.PackageID,
				MinVersion: d.MinVersion,
			})
		}
	}

	state.Consistent, err = h.ix.CheckConsistency(ctx, false)
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// decodeManifest re-encodes an inline manifest node and parses it like a
// manifest file, schema validation included.
func decodeManifest(node *yaml.Node) (*manifest.Manifest, error) {
	data, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("encode inline manifest: %w", err)
	}
	return manifest.Parse(data)
}

// errorCode maps an index error to the code used in expect clauses.
func errorCode(err error) string {
	switch {
	case dependencies.IsUnresolvableDependency(err):
		return ErrorUnresolvable
	case dependencies.IsInvalidColumn(err):
		return ErrorInvalidColumn
	case errors.Is(err, index.ErrManifestNotFound):
		return ErrorManifestNotFound
	case errors.Is(err, index.ErrManifestExists):
		return ErrorManifestExists
	case errors.Is(err, manifest.ErrInvalidManifest):
		return ErrorInvalidManifest
	default:
		return ErrorOther
	}
}

package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pkgindex/internal/dependencies"
	"github.com/roach88/pkgindex/internal/index"
	"github.com/roach88/pkgindex/internal/store"
)

// Scenario defines an index test scenario: a sequence of writes followed by
// assertions on the resulting edges.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SchemaVersion is the version the index is created at ("1.0", "1.4"
	// or "latest"). Empty means latest.
	SchemaVersion string `yaml:"schema_version,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final index content.
	// Supported types: dependencies, dependents, edge_count, consistent,
	// referenced
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one index operation. Exactly one of Add, Update, Remove, Migrate
// and Package is set.
type Step struct {
	// Add is an inline manifest document to add. Held as a raw node so the
	// manifest keys escape strict field checking; zero Kind means unset.
	Add yaml.Node `yaml:"add,omitempty"`

	// Update is an inline manifest document to reconcile.
	Update yaml.Node `yaml:"update,omitempty"`

	// Remove names the manifest to remove.
	Remove *index.Key `yaml:"remove,omitempty"`

	// Migrate is the schema version to migrate to.
	Migrate string `yaml:"migrate,omitempty"`

	// Package strips the dependencies relation.
	Package bool `yaml:"package,omitempty"`

	// Expect specifies the expected failure. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Step operation names.
const (
	OpAdd     = "add"
	OpUpdate  = "update"
	OpRemove  = "remove"
	OpMigrate = "migrate"
	OpPackage = "package"
)

// Op returns the step's operation name, or "" if none or several are set.
func (s Step) Op() string {
	var ops []string
	if !s.Add.IsZero() {
		ops = append(ops, OpAdd)
	}
	if !s.Update.IsZero() {
		ops = append(ops, OpUpdate)
	}
	if s.Remove != nil {
		ops = append(ops, OpRemove)
	}
	if s.Migrate != "" {
		ops = append(ops, OpMigrate)
	}
	if s.Package {
		ops = append(ops, OpPackage)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// ExpectClause specifies how a step must fail.
type ExpectClause struct {
	// Error is the expected error code (see Error code constants).
	Error string `yaml:"error"`

	// Missing lists the unresolvable identifiers expected with
	// UNRESOLVABLE_DEPENDENCY. Optional.
	Missing []string `yaml:"missing,omitempty"`
}

// Error codes a step can be expected to fail with.
const (
	ErrorUnresolvable     = string(dependencies.ErrCodeUnresolvableDependency)
	ErrorInvalidColumn    = string(dependencies.ErrCodeInvalidColumn)
	ErrorManifestNotFound = "MANIFEST_NOT_FOUND"
	ErrorManifestExists   = "MANIFEST_EXISTS"
	ErrorInvalidManifest  = "INVALID_MANIFEST"
	ErrorOther            = "ERROR"
)

// Assertion validates the final index content.
type Assertion struct {
	// Type specifies the assertion type:
	// - "dependencies": Manifest's edges equal Expect, in package-row order
	// - "dependents": Package has exactly Count dependents
	// - "edge_count": The relation holds exactly Count edges
	// - "consistent": The consistency scan returns Consistent (default true)
	// - "referenced": An edge references Value through Column, or not
	Type string `yaml:"type"`

	// Manifest names the manifest (used by dependencies).
	Manifest *index.Key `yaml:"manifest,omitempty"`

	// Expect lists the expected edges (used by dependencies).
	Expect []ExpectedEdge `yaml:"expect,omitempty"`

	// Package is the depended-upon identifier (used by dependents).
	Package string `yaml:"package,omitempty"`

	// Count is the expected number (used by dependents and edge_count).
	Count *int `yaml:"count,omitempty"`

	// Consistent is the expected scan result (used by consistent).
	Consistent *bool `yaml:"consistent,omitempty"`

	// Column is min_version or package_id (used by referenced).
	Column string `yaml:"column,omitempty"`

	// Value is the interned version or identifier (used by referenced).
	Value string `yaml:"value,omitempty"`

	// Referenced is the expected answer (used by referenced).
	Referenced *bool `yaml:"referenced,omitempty"`
}

// ExpectedEdge is one expected dependency of a manifest.
type ExpectedEdge struct {
	Package    string `yaml:"package"`
	MinVersion string `yaml:"min_version,omitempty"`
}

// Assertion type constants.
const (
	AssertDependencies = "dependencies"
	AssertDependents   = "dependents"
	AssertEdgeCount    = "edge_count"
	AssertConsistent   = "consistent"
	AssertReferenced   = "referenced"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.SchemaVersion != "" {
		if _, err := store.ParseSchemaVersion(s.SchemaVersion); err != nil {
			return fmt.Errorf("schema_version: %w", err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op() == "" {
			return fmt.Errorf("steps[%d]: exactly one of add, update, remove, migrate, package is required", i)
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("steps[%d].expect: error is required", i)
		}
		if step.Migrate != "" {
			if _, err := store.ParseSchemaVersion(step.Migrate); err != nil {
				return fmt.Errorf("steps[%d].migrate: %w", i, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(i int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", i)
	}

	switch a.Type {
	case AssertDependencies:
		if a.Manifest == nil {
			return fmt.Errorf("assertions[%d]: manifest is required for dependencies", i)
		}
	case AssertDependents:
		if a.Package == "" {
			return fmt.Errorf("assertions[%d]: package is required for dependents", i)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for dependents", i)
		}
	case AssertEdgeCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for edge_count", i)
		}
	case AssertConsistent:
	case AssertReferenced:
		if a.Column != dependencies.ColumnMinVersion && a.Column != dependencies.ColumnPackage {
			return fmt.Errorf("assertions[%d]: column must be %s or %s for referenced", i,
				dependencies.ColumnMinVersion, dependencies.ColumnPackage)
		}
		if a.Value == "" || a.Referenced == nil {
			return fmt.Errorf("assertions[%d]: value and referenced are required for referenced", i)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}

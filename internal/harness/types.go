package harness

// Outcome values recorded in the trace.
const (
	OutcomeOK = "ok"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq      int    `json:"seq"`
	Op       string `json:"op"`
	Target   string `json:"target,omitempty"`
	Outcome  string `json:"outcome"`
	Row      int64  `json:"row,omitempty"`
	Declared *bool  `json:"declared,omitempty"`

	// Missing lists unresolvable package identifiers on failed writes.
	Missing []string `json:"missing,omitempty"`
}

// EdgeSnapshot is one stored dependency edge, materialized.
type EdgeSnapshot struct {
	Manifest   string `json:"manifest"`
	Package    string `json:"package"`
	MinVersion string `json:"min_version,omitempty"`
}

// State is the index content after the last step.
type State struct {
	SchemaVersion string         `json:"schema_version"`
	Manifests     []string       `json:"manifests"`
	Edges         []EdgeSnapshot `json:"edges"`
	Consistent    bool           `json:"consistent"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final index content.
	State State `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it after the previous one.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}

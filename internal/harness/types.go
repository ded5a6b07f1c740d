package harness

// TraceEvent is one statement sent to the gateway during a scenario.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Kind   string `json:"kind"` // "query" or "exec"
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every statement in execution order. Schema migration
	// is not traced.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends a statement to the trace.
func (r *Result) addTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

package harness

// TraceEvent records one append outcome for the trace.
// Accepted appends carry the commit ref and index; refused appends carry
// the refusal reason and message.
type TraceEvent struct {
	Type          string                 `json:"type"` // "commit" or "refusal"
	Entity        string                 `json:"entity"`
	CommitType    string                 `json:"commit_type"`
	Index         uint64                 `json:"index,omitempty"`
	Ref           string                 `json:"ref,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	RefusalReason string                 `json:"refusal_reason,omitempty"`
	RefusalMsg    string                 `json:"refusal_msg,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: every step's expect clause
	// matched and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every append outcome in order, accepted and refused.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failure messages. Empty if Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
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

// AddCommitTrace records an accepted append.
func (r *Result) AddCommitTrace(entity, commitType, ref string, index uint64, payload map[string]interface{}) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       "commit",
		Entity:     entity,
		CommitType: commitType,
		Index:      index,
		Ref:        ref,
		Payload:    payload,
	})
}

// AddRefusalTrace records a refused append.
func (r *Result) AddRefusalTrace(entity, commitType, reason, msg string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:          "refusal",
		Entity:        entity,
		CommitType:    commitType,
		RefusalReason: reason,
		RefusalMsg:    msg,
	})
}

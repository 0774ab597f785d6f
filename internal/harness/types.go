package harness

import "github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"

// TraceEvent records one executed step and the engine actions it applied.
type TraceEvent struct {
	Seq        int      `json:"seq"`
	Step       string   `json:"step"`
	Actions    []string `json:"actions"`
	Selections int      `json:"selections"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final composition.
	State model.CompositionState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  model.NewCompositionState(),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(step string, actions []string, selections int) {
	if actions == nil {
		actions = []string{}
	}
	r.Trace = append(r.Trace, TraceEvent{
		Seq:        len(r.Trace) + 1,
		Step:       step,
		Actions:    actions,
		Selections: selections,
	})
}

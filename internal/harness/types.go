package harness

// Trace event types.
const (
	EventOp       = "op"
	EventCallback = "callback"
)

// TraceEvent is one entry in a scenario trace: either a completed bridge
// operation or a callback delivery that happened while one was running.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Op   string `json:"op"`
	On   string `json:"on,omitempty"`
	As   string `json:"as,omitempty"`
	Key  string `json:"key,omitempty"`
	Mode string `json:"mode,omitempty"`

	// Result is a bool, int64 or string; doubles are rendered as strings.
	Result any     `json:"result,omitempty"`
	Found  *bool   `json:"found,omitempty"`
	Value  *string `json:"value,omitempty"`
	Error  string  `json:"error,omitempty"`

	// CallbackError is the error a host callback recorded on the owning
	// handle during this operation.
	CallbackError string `json:"callback_error,omitempty"`

	// Data and N describe a callback delivery.
	Data *string `json:"data,omitempty"`
	N    int     `json:"n,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion matched.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per mismatch. Empty if Pass is true.
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

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

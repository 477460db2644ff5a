package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		if event.Type != EventOp {
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.On)
		if event.Error != "" {
			fmt.Fprintf(&buf, " -> %s", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

func (h *Harness) assert(a Assertion) error {
	trace := h.result.Trace
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertFinalState:
		return h.assertFinalState(a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matches(event TraceEvent, op, on string) bool {
	return event.Type == EventOp && event.Op == op && (on == "" || event.On == on)
}

// assertTraceContains checks that an op, optionally on a given handle,
// appears in the trace.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a.Op, a.On) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s on %q", a.Op, a.On),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Intervening ops are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventOp {
			continue
		}
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that an op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a.Op, a.On) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("%s appears %d times", a.Op, count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads a key through a named connection after all steps
// have run.
func (h *Harness) assertFinalState(a Assertion) error {
	c, err := h.env.Registry().Connection(h.id(a.On))
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	found, v, err := c.KVFetch([]byte(a.Key))
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	switch {
	case a.Value == nil && found:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s absent", a.Key),
			Actual:   fmt.Sprintf("%s = %q", a.Key, v),
			Trace:    h.result.Trace,
		}
	case a.Value != nil && !found:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %q", a.Key, *a.Value),
			Actual:   fmt.Sprintf("%s absent", a.Key),
			Trace:    h.result.Trace,
		}
	case a.Value != nil && string(v) != *a.Value:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %q", a.Key, *a.Value),
			Actual:   fmt.Sprintf("%s = %q", a.Key, v),
			Trace:    h.result.Trace,
		}
	}
	return nil
}

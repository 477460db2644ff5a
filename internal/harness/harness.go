package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/roach88/kvbridge/internal/bridge"
)

// errCallbackFailed is what a "fail" callback returns to the bridge.
var errCallbackFailed = errors.New("callback failed")

// Harness executes scenarios against a fresh bridge environment.
type Harness struct {
	sc     *Scenario
	env    *bridge.Environment
	names  map[string]string
	result *Result
	seq    int64
}

// outcome is what a step produced, before it is checked and traced.
type outcome struct {
	result any
	found  *bool
	value  *string
	err    error
	cbErr  error
}

// Run executes a scenario and returns the result.
//
// Each run gets its own environment with sequential handle IDs. Every
// handle still open at the end is swept before Run returns.
func Run(sc *Scenario) (*Result, error) {
	return RunWithLogger(sc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a caller-supplied logger for the bridge.
func RunWithLogger(sc *Scenario, logger *slog.Logger) (*Result, error) {
	if err := validateScenario(sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		sc: sc,
		env: bridge.New(bridge.Options{
			IDs:              bridge.NewSequenceGenerator("h"),
			MaxBuffer:        sc.MaxBuffer,
			MaxCallbackDepth: sc.MaxCallbackDepth,
			Logger:           logger,
		}),
		names:  make(map[string]string),
		result: NewResult(),
	}

	for i, step := range sc.Steps {
		out := h.exec(step)
		h.trace(step, out)
		h.check(i, step, out)
	}

	for i, a := range sc.Assertions {
		if err := h.assert(a); err != nil {
			h.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	if err := h.env.Sweep(); err != nil {
		h.result.AddError(fmt.Sprintf("sweep: %v", err))
	}
	return h.result, nil
}

// id maps a scenario name to a handle ID. Unbound names pass through
// unchanged so the registry reports them as invalid.
func (h *Harness) id(name string) string {
	if id, ok := h.names[name]; ok {
		return id
	}
	return name
}

func (h *Harness) bind(name, id string) {
	if name != "" {
		h.names[name] = id
	}
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

func (h *Harness) exec(step Step) outcome {
	reg := h.env.Registry()

	switch step.Op {
	case "connect":
		source := step.Source
		if source == "" {
			source = h.sc.source()
		}
		c, err := h.env.Connect(source)
		if err != nil {
			return outcome{err: err}
		}
		h.bind(step.As, c.ID())
		return outcome{result: true}

	case "env_close":
		return outcome{result: h.env.Close()}

	case "sweep":
		if err := h.env.Sweep(); err != nil {
			return outcome{err: err}
		}
		return outcome{result: true}

	case "release":
		return h.release(step.On)
	}

	switch step.Op {
	case "close", "commit", "rollback", "kv_store", "kv_append", "kv_fetch",
		"kv_delete", "kv_fetch_callback", "create_cursor", "compile", "compile_file":
		c, err := reg.Connection(h.id(step.On))
		if err != nil {
			return outcome{err: err}
		}
		return h.connectionOp(c, step)
	case "cursor_seek", "cursor_first_entry", "cursor_last_entry", "cursor_next_entry",
		"cursor_prev_entry", "cursor_is_valid", "cursor_key", "cursor_data", "cursor_delete":
		cur, err := reg.Cursor(h.id(step.On))
		if err != nil {
			return outcome{err: err}
		}
		return h.cursorOp(cur, step)
	default:
		vm, err := reg.VM(h.id(step.On))
		if err != nil {
			return outcome{err: err}
		}
		return h.vmOp(vm, step)
	}
}

func boolOutcome(ok bool, err error) outcome {
	if err != nil {
		return outcome{err: err}
	}
	return outcome{result: ok}
}

func (h *Harness) connectionOp(c *bridge.Connection, step Step) outcome {
	key := []byte(step.Key)

	switch step.Op {
	case "close":
		return boolOutcome(c.Close())
	case "commit":
		return boolOutcome(c.Commit())
	case "rollback":
		return boolOutcome(c.Rollback())
	case "kv_store":
		return boolOutcome(c.KVStore(key, []byte(step.Value)))
	case "kv_append":
		return boolOutcome(c.KVAppend(key, []byte(step.Value)))
	case "kv_delete":
		return boolOutcome(c.KVDelete(key))
	case "kv_fetch":
		found, v, err := c.KVFetch(key)
		if err != nil {
			return outcome{err: err, cbErr: c.CallbackErr()}
		}
		out := outcome{found: &found, cbErr: c.CallbackErr()}
		if found {
			s := string(v)
			out.value = &s
		}
		return out
	case "kv_fetch_callback":
		cb := h.callback(step, "fetch_callback", func() error {
			_, err := c.Close()
			return err
		})
		return boolOutcome(c.KVFetchCallback(key, cb, nil))
	case "create_cursor":
		cur, err := c.CreateCursor()
		if err != nil {
			return outcome{err: err}
		}
		h.bind(step.As, cur.ID())
		return outcome{result: true}
	case "compile", "compile_file":
		var vm *bridge.VM
		var err error
		if step.Op == "compile" {
			vm, err = c.Compile(step.Script)
		} else {
			vm, err = c.CompileFile(h.sc.resolve(step.File))
		}
		if err != nil {
			return outcome{err: err}
		}
		h.bind(step.As, vm.ID())
		return outcome{result: true}
	}
	return outcome{err: fmt.Errorf("unhandled op %q", step.Op)}
}

func (h *Harness) cursorOp(cur *bridge.Cursor, step Step) outcome {
	switch step.Op {
	case "cursor_seek":
		mode, err := parseMode(step.Mode)
		if err != nil {
			return outcome{err: err}
		}
		return boolOutcome(cur.Seek([]byte(step.Key), mode))
	case "cursor_first_entry":
		return boolOutcome(cur.FirstEntry())
	case "cursor_last_entry":
		return boolOutcome(cur.LastEntry())
	case "cursor_next_entry":
		return boolOutcome(cur.NextEntry())
	case "cursor_prev_entry":
		return boolOutcome(cur.PrevEntry())
	case "cursor_is_valid":
		return outcome{result: cur.IsValidEntry()}
	case "cursor_key", "cursor_data":
		read := cur.Key
		if step.Op == "cursor_data" {
			read = cur.Data
		}
		b, err := read()
		if err != nil {
			return outcome{err: err}
		}
		s := string(b)
		return outcome{value: &s}
	case "cursor_delete":
		return boolOutcome(cur.DeleteEntry())
	}
	return outcome{err: fmt.Errorf("unhandled op %q", step.Op)}
}

func (h *Harness) vmOp(vm *bridge.VM, step Step) outcome {
	var (
		v   any
		err error
	)

	switch step.Op {
	case "vm_exec":
		ok, err := vm.Exec()
		if err != nil {
			return outcome{err: err, cbErr: vm.CallbackErr()}
		}
		return outcome{result: ok, cbErr: vm.CallbackErr()}
	case "vm_reset":
		return boolOutcome(vm.Reset())
	case "vm_bind":
		return boolOutcome(vm.Bind(step.Key, step.Bind))
	case "vm_output_callback":
		cb := h.callback(step, "output_callback", func() error {
			_, err := vm.Release()
			return err
		})
		return boolOutcome(vm.SetOutputCallback(cb, nil))
	case "vm_get_int":
		var n int
		n, err = vm.Int(step.Key)
		v = int64(n)
	case "vm_get_int64":
		v, err = vm.Int64(step.Key)
	case "vm_get_bool":
		v, err = vm.Bool(step.Key)
	case "vm_get_double":
		var f float64
		f, err = vm.Double(step.Key)
		v = formatFloat(f)
	case "vm_get_string":
		v, err = vm.StringVar(step.Key)
	default:
		return outcome{err: fmt.Errorf("unhandled op %q", step.Op)}
	}

	if err != nil {
		return outcome{err: err}
	}
	return outcome{result: v}
}

// release dispatches on the handle's kind. Connections are not releasable.
func (h *Harness) release(name string) outcome {
	id := h.id(name)
	reg := h.env.Registry()

	if kind, ok := reg.Kind(id); ok && kind == bridge.KindVM {
		vm, err := reg.VM(id)
		if err != nil {
			return outcome{err: err}
		}
		return boolOutcome(vm.Release())
	}
	cur, err := reg.Cursor(id)
	if err != nil {
		return outcome{err: err}
	}
	return boolOutcome(cur.Release())
}

// callback builds the host callback a step asked for. Every delivery is
// appended to the trace as it happens.
func (h *Harness) callback(step Step, op string, closeOwner func() error) bridge.Callback {
	mode := step.Callback
	if mode == "" || mode == CallbackNone {
		return nil
	}

	return func(data []byte, n int, _ any) error {
		ev := TraceEvent{
			Type: EventCallback,
			Op:   op,
			On:   step.On,
			Data: ptr(string(data)),
			N:    n,
		}
		var err error
		switch mode {
		case CallbackFail:
			err = errCallbackFailed
		case CallbackClose:
			ev.Error = errorCode(closeOwner())
		}
		ev.Seq = h.next()
		h.result.Trace = append(h.result.Trace, ev)

		if mode == CallbackPanic {
			panic("boom")
		}
		return err
	}
}

func (h *Harness) trace(step Step, out outcome) {
	ev := TraceEvent{
		Seq:    h.next(),
		Type:   EventOp,
		Op:     step.Op,
		On:     step.On,
		As:     step.As,
		Key:    step.Key,
		Mode:   step.Mode,
		Result: out.result,
		Found:  out.found,
		Value:  out.value,
		Error:  errorCode(out.err),
	}
	if out.cbErr != nil {
		ev.CallbackError = out.cbErr.Error()
	}
	h.result.Trace = append(h.result.Trace, ev)
}

// check compares a step outcome with its expect clause.
func (h *Harness) check(i int, step Step, out outcome) {
	prefix := fmt.Sprintf("steps[%d] %s", i, step.Op)
	code := errorCode(out.err)

	if step.Expect == nil {
		if out.err != nil {
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, out.err))
		}
		return
	}

	e := step.Expect
	if e.Error != code {
		h.result.AddError(fmt.Sprintf("%s: expected error %q, got %q", prefix, e.Error, code))
	}
	if e.Result != nil && !reflect.DeepEqual(normalize(e.Result), normalize(out.result)) {
		h.result.AddError(fmt.Sprintf("%s: expected result %v, got %v", prefix, e.Result, out.result))
	}
	if e.Found != nil && (out.found == nil || *out.found != *e.Found) {
		h.result.AddError(fmt.Sprintf("%s: expected found=%t", prefix, *e.Found))
	}
	if e.Value != nil && (out.value == nil || *out.value != *e.Value) {
		got := "<none>"
		if out.value != nil {
			got = strconv.Quote(*out.value)
		}
		h.result.AddError(fmt.Sprintf("%s: expected value %q, got %s", prefix, *e.Value, got))
	}
}

// errorCode renders an error as its bridge code, or "ERROR" for errors
// that did not come from the bridge.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := bridge.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// parseMode accepts a seek mode name or a raw integer.
func parseMode(s string) (bridge.SeekMode, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return bridge.SeekMode(n), nil
	}
	return bridge.ParseSeekMode(s)
}

// normalize maps YAML scalars and step results onto comparable values.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case float64:
		return formatFloat(x)
	default:
		return v
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func ptr[T any](v T) *T { return &v }

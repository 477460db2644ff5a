package engine

import (
	"context"

	"github.com/roach88/kvbridge/internal/script"
)

// VM is a compiled script bound to a session.
//
// Lifecycle: compiled -> (executed)* -> released. Reset discards the last
// result without recompiling; bound variables survive a reset.
type VM interface {
	// Exec evaluates the script, applies its store and delete effects to
	// the session and then delivers each output item to the output
	// consumer.
	Exec() Status
	Reset() Status
	// OutputCallback registers the output consumer; a nil fn removes it.
	OutputCallback(fn Consumer, userData any) Status
	// Bind fills the variable name before the next Exec.
	Bind(name string, value any) Status
	// ExtractVariable returns a variable of the last execution.
	ExtractVariable(name string) (*Value, Status)
}

type vm struct {
	s        *session
	prog     *script.Program
	bindings map[string]any
	result   *script.Result
	out      Consumer
	outData  any
	released bool
}

func compileSource(s *session, src string) (*vm, error) {
	prog, err := script.Compile("script", src)
	if err != nil {
		return nil, err
	}
	return &vm{s: s, prog: prog, bindings: make(map[string]any)}, nil
}

func compileFile(s *session, path string) (*vm, error) {
	prog, err := script.CompileFile(path)
	if err != nil {
		return nil, err
	}
	return &vm{s: s, prog: prog, bindings: make(map[string]any)}, nil
}

func (m *vm) usable(op string) bool {
	if m.released {
		m.s.logf("%s: vm is released", op)
		return false
	}
	return m.s.usable(op)
}

func (m *vm) Exec() Status {
	if !m.usable("vm_exec") {
		return Invalid
	}
	m.result = nil

	res, err := m.prog.Eval(m.bindings)
	if err != nil {
		m.s.logf("vm_exec %s: %v", m.prog.Name(), err)
		return VMErr
	}

	// Keys are checked up front so a bad key leaves the session untouched.
	for _, rec := range res.Store {
		if len(rec.Key) == 0 {
			m.s.logf("vm_exec %s: store: empty key", m.prog.Name())
			return VMErr
		}
	}
	for _, key := range res.Delete {
		if len(key) == 0 {
			m.s.logf("vm_exec %s: delete: empty key", m.prog.Name())
			return VMErr
		}
	}

	ctx := context.Background()
	for _, rec := range res.Store {
		if err := m.s.store.Put(ctx, rec.Key, rec.Value); err != nil {
			m.s.logf("vm_exec %s: store %q: %v", m.prog.Name(), rec.Key, err)
			return IOErr
		}
	}
	for _, key := range res.Delete {
		if _, err := m.s.store.Delete(ctx, key); err != nil {
			m.s.logf("vm_exec %s: delete %q: %v", m.prog.Name(), key, err)
			return IOErr
		}
	}
	m.result = res

	for _, item := range res.Output {
		// Re-read the slot per item: the consumer may replace it.
		if m.out == nil {
			continue
		}
		if m.out(item, m.outData) == Abort {
			m.s.logf("vm_exec %s: output consumer aborted", m.prog.Name())
			return Abort
		}
		if m.released {
			break
		}
	}
	return OK
}

func (m *vm) Reset() Status {
	if !m.usable("vm_reset") {
		return Invalid
	}
	m.result = nil
	return OK
}

func (m *vm) OutputCallback(fn Consumer, userData any) Status {
	if !m.usable("vm_output_callback") {
		return Invalid
	}
	if fn == nil {
		m.out, m.outData = nil, nil
		return OK
	}
	m.out, m.outData = fn, userData
	return OK
}

func (m *vm) Bind(name string, value any) Status {
	if !m.usable("vm_bind") {
		return Invalid
	}
	if name == "" {
		m.s.logf("vm_bind: empty variable name")
		return Invalid
	}
	m.bindings[name] = value
	return OK
}

func (m *vm) ExtractVariable(name string) (*Value, Status) {
	if !m.usable("vm_extract_variable") {
		return nil, Invalid
	}
	if m.result == nil {
		m.s.logf("vm_extract_variable: %s has not been executed", m.prog.Name())
		return nil, NotFound
	}
	v, ok := m.result.Lookup(name)
	if !ok {
		m.s.logf("variable %q not found", name)
		return nil, NotFound
	}
	return &Value{name: name, v: v}, OK
}

package bridge

import (
	"github.com/roach88/kvbridge/internal/engine"
)

type outputSlot struct {
	fn       Callback
	userData any
}

// VM is a compiled script bound to a connection.
//
// Lifecycle: compiled -> (executed)* -> released. Reset returns to the
// pre-execution state without recompiling.
type VM struct {
	h        *handle
	conn     *Connection
	native   engine.VM
	out      outputSlot
	inNative int
	cbErr    error
}

// ID returns the handle ID.
func (v *VM) ID() string { return v.h.id }

func (v *VM) String() string { return v.h.String() }

// CallbackErr returns the error of the last failed output callback during
// the most recent Exec, or nil.
func (v *VM) CallbackErr() error { return v.cbErr }

func (v *VM) check(op string) error {
	return v.h.validate(KindVM, op)
}

func (v *VM) engineErr(op string) error {
	return engineError(op, v.h, v.conn.sess.ErrLog())
}

// enter marks the VM and its connection as inside a native call.
func (v *VM) enter() func() {
	v.inNative++
	leave := v.conn.enter()
	return func() {
		leave()
		v.inNative--
	}
}

// Exec runs the script. The output callback, if any, receives each output
// item before Exec returns.
func (v *VM) Exec() (bool, error) {
	if err := v.check("vm_exec"); err != nil {
		return false, err
	}
	defer v.enter()()
	v.cbErr = nil

	if st := v.native.Exec(); st != engine.OK {
		return false, v.engineErr("vm_exec")
	}
	return true, nil
}

// Reset discards the last execution result. It fails with RESOURCE_BUSY
// when called from the VM's own output callback.
func (v *VM) Reset() (bool, error) {
	if err := v.check("vm_reset"); err != nil {
		return false, err
	}
	if v.inNative > 0 {
		return false, newError(CodeResourceBusy, "vm_reset", v.h, "vm is executing")
	}
	if st := v.native.Reset(); st != engine.OK {
		return false, v.engineErr("vm_reset")
	}
	return true, nil
}

// SetOutputCallback registers cb for the script's output. A nil cb clears
// the registration in the engine too.
func (v *VM) SetOutputCallback(cb Callback, userData any) (bool, error) {
	if err := v.check("vm_output_callback"); err != nil {
		return false, err
	}
	if cb == nil {
		if st := v.native.OutputCallback(nil, nil); st != engine.OK {
			return false, v.engineErr("vm_output_callback")
		}
		v.out = outputSlot{}
		return true, nil
	}
	if st := v.native.OutputCallback(outputConsumer, v); st != engine.OK {
		return false, v.engineErr("vm_output_callback")
	}
	v.out = outputSlot{fn: cb, userData: userData}
	return true, nil
}

// Bind fills the script variable name before the next Exec.
func (v *VM) Bind(name string, value any) (bool, error) {
	if err := v.check("vm_bind"); err != nil {
		return false, err
	}
	if st := v.native.Bind(name, value); st != engine.OK {
		return false, v.engineErr("vm_bind")
	}
	return true, nil
}

// ExtractVariable returns a variable of the last execution. A missing
// variable is an ENGINE_ERROR.
func (v *VM) ExtractVariable(name string) (*engine.Value, error) {
	return v.extract("vm_extract_variable", name)
}

func (v *VM) extract(op, name string) (*engine.Value, error) {
	if err := v.check(op); err != nil {
		return nil, err
	}
	x, st := v.native.ExtractVariable(name)
	if st != engine.OK {
		return nil, v.engineErr(op)
	}
	return x, nil
}

// convert extracts name and applies conv, reporting conversion failures
// as ENGINE_ERROR.
func convert[T any](v *VM, op, name string, conv func(*engine.Value) (T, error)) (T, error) {
	var zero T
	x, err := v.extract(op, name)
	if err != nil {
		return zero, err
	}
	out, err := conv(x)
	if err != nil {
		return zero, newError(CodeEngineError, op, v.h, "%v", err)
	}
	return out, nil
}

// Int returns the integer variable name.
func (v *VM) Int(name string) (int, error) {
	return convert(v, "vm_get_int", name, (*engine.Value).Int)
}

// Int64 returns the integer variable name.
func (v *VM) Int64(name string) (int64, error) {
	return convert(v, "vm_get_int64", name, (*engine.Value).Int64)
}

// Bool returns the boolean variable name.
func (v *VM) Bool(name string) (bool, error) {
	return convert(v, "vm_get_bool", name, (*engine.Value).Bool)
}

// Double returns the numeric variable name as a float64.
func (v *VM) Double(name string) (float64, error) {
	return convert(v, "vm_get_double", name, (*engine.Value).Float64)
}

// StringVar returns the string or bytes variable name.
func (v *VM) StringVar(name string) (string, error) {
	return convert(v, "vm_get_string", name, (*engine.Value).Text)
}

// Release releases the compiled script. It returns false if the VM was
// already released, and fails with RESOURCE_BUSY when called from the VM's
// own output callback.
func (v *VM) Release() (bool, error) {
	if !v.h.open {
		return false, nil
	}
	if v.inNative > 0 {
		return false, newError(CodeResourceBusy, "vm_release", v.h, "vm is executing")
	}
	st := v.conn.sess.VMRelease(v.native)
	v.conn.env.reg.retire(v.h)
	v.out = outputSlot{}
	v.conn.vms--
	if st != engine.OK {
		return false, v.engineErr("vm_release")
	}
	v.conn.env.log.Debug("vm released", "handle", v.h.id)
	return true, nil
}

// Reclaim releases the VM if it is still open. It follows the same path as
// Release; failures are logged and returned.
func (v *VM) Reclaim() error {
	if !v.h.open {
		return nil
	}
	if _, err := v.Release(); err != nil {
		v.conn.env.log.Error("reclaim vm failed", "handle", v.h.id, "error", err)
		return err
	}
	return nil
}

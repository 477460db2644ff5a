package bridge

import (
	"bytes"
	"fmt"

	"github.com/roach88/kvbridge/internal/engine"
)

// DefaultMaxCallbackDepth bounds nested callback invocations.
const DefaultMaxCallbackDepth = 64

// Callback is a host callable the engine invokes while a KVFetch or Exec is
// in progress. data is a private copy of the delivered bytes and n is its
// length; userData is the value given at registration.
//
// A returned error (or a panic) is captured and recorded on the owning
// handle. It never aborts the engine call.
type Callback func(data []byte, n int, userData any) error

// frame is one entry of the host call stack.
type frame struct {
	owner    *handle
	fn       Callback
	data     []byte
	n        int
	userData any
}

// invoke runs fn on behalf of owner. The host call stack is saved before
// the frame is pushed and restored on every return path, including a
// panic in fn.
func (e *Environment) invoke(owner *handle, fn Callback, data []byte, userData any) error {
	top := len(e.stack)
	defer func() {
		clear(e.stack[top:])
		e.stack = e.stack[:top]
	}()

	if top >= e.maxDepth {
		return fmt.Errorf("callback depth limit (%d) reached", e.maxDepth)
	}

	buf := bytes.Clone(data)
	if buf == nil {
		buf = []byte{}
	}
	e.stack = append(e.stack, frame{
		owner:    owner,
		fn:       fn,
		data:     buf,
		n:        len(buf),
		userData: userData,
	})
	return protectedCall(e.stack[top])
}

func protectedCall(f frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return f.fn(f.data, f.n, f.userData)
}

// Depth returns the number of callbacks currently on the host call stack.
func (e *Environment) Depth() int {
	return len(e.stack)
}

// fetchConsumer is registered with the engine for every fetch callback.
// userData is the owning *Connection.
func fetchConsumer(data []byte, userData any) engine.Status {
	c := userData.(*Connection)
	slot := c.fetch
	if slot.fn == nil {
		return engine.OK
	}
	if err := c.env.invoke(c.h, slot.fn, data, slot.userData); err != nil {
		c.cbErr = fmt.Errorf("fetch callback: %w", err)
		c.env.log.Warn("fetch callback failed",
			"handle", c.h.id,
			"key", string(slot.key),
			"error", err)
	}
	return engine.OK
}

// outputConsumer is registered with the engine for every VM output
// callback. userData is the owning *VM.
func outputConsumer(data []byte, userData any) engine.Status {
	v := userData.(*VM)
	slot := v.out
	if slot.fn == nil {
		return engine.OK
	}
	if err := v.conn.env.invoke(v.h, slot.fn, data, slot.userData); err != nil {
		v.cbErr = fmt.Errorf("output callback: %w", err)
		v.conn.env.log.Warn("output callback failed",
			"handle", v.h.id,
			"error", err)
	}
	return engine.OK
}

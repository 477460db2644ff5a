package bridge

import (
	"bytes"

	"github.com/roach88/kvbridge/internal/engine"
)

// fetchSlot is the single fetch callback registration of a connection.
type fetchSlot struct {
	fn       Callback
	userData any
	key      []byte
}

// Connection owns one engine session and tracks the cursors and VMs
// created from it.
type Connection struct {
	h        *handle
	env      *Environment
	sess     engine.Session
	cursors  int
	vms      int
	fetch    fetchSlot
	inNative int
	cbErr    error
}

// ID returns the handle ID.
func (c *Connection) ID() string { return c.h.id }

func (c *Connection) String() string { return c.h.String() }

// IsOpen reports whether the connection has not been closed.
func (c *Connection) IsOpen() bool { return c.h.open }

// CallbackErr returns the error of the last failed fetch callback during
// the most recent KVFetch, or nil.
func (c *Connection) CallbackErr() error { return c.cbErr }

func (c *Connection) check(op string) error {
	return c.h.validate(KindConnection, op)
}

// enter marks the connection as inside a native call until the returned
// func runs.
func (c *Connection) enter() func() {
	c.inNative++
	return func() { c.inNative-- }
}

func (c *Connection) engineErr(op string) error {
	return engineError(op, c.h, c.sess.ErrLog())
}

// Close releases the fetch callback and closes the engine session, which
// commits pending writes. It returns false if the connection was already
// closed.
//
// Close fails with RESOURCE_BUSY while cursors or VMs are open, or when
// called from a callback running inside one of this connection's calls.
func (c *Connection) Close() (bool, error) {
	if !c.h.open {
		return false, nil
	}
	if c.inNative > 0 {
		return false, newError(CodeResourceBusy, "close", c.h, "connection is inside a native call")
	}
	if c.cursors > 0 || c.vms > 0 {
		return false, newError(CodeResourceBusy, "close", c.h,
			"%d cursor(s) and %d vm(s) still open", c.cursors, c.vms)
	}

	if c.fetch.key != nil {
		if st := c.sess.FetchCallback(c.fetch.key, nil, nil); st != engine.OK {
			c.env.log.Warn("clear fetch callback failed",
				"handle", c.h.id, "error", c.sess.ErrLog())
		}
	}
	c.fetch = fetchSlot{}

	st := c.sess.Close()
	c.env.reg.retire(c.h)
	if st != engine.OK {
		return false, c.engineErr("close")
	}
	c.env.log.Debug("connection closed", "handle", c.h.id)
	return true, nil
}

// Reclaim closes the connection if it is still open. It follows the same
// path as Close; failures are logged and returned.
func (c *Connection) Reclaim() error {
	if !c.h.open {
		return nil
	}
	if _, err := c.Close(); err != nil {
		c.env.log.Error("reclaim connection failed", "handle", c.h.id, "error", err)
		return err
	}
	return nil
}

// Commit commits pending writes and starts a new transaction.
func (c *Connection) Commit() (bool, error) {
	if err := c.check("commit"); err != nil {
		return false, err
	}
	if st := c.sess.Commit(); st != engine.OK {
		return false, c.engineErr("commit")
	}
	return true, nil
}

// Rollback discards writes since the last commit.
func (c *Connection) Rollback() (bool, error) {
	if err := c.check("rollback"); err != nil {
		return false, err
	}
	if st := c.sess.Rollback(); st != engine.OK {
		return false, c.engineErr("rollback")
	}
	return true, nil
}

// KVStore stores value under key, replacing any previous value.
func (c *Connection) KVStore(key, value []byte) (bool, error) {
	if err := c.check("kv_store"); err != nil {
		return false, err
	}
	if st := c.sess.Store(key, value); st != engine.OK {
		return false, c.engineErr("kv_store")
	}
	return true, nil
}

// KVAppend appends value to the record under key. Whether a missing key is
// created is up to the engine; the default engine creates it.
func (c *Connection) KVAppend(key, value []byte) (bool, error) {
	if err := c.check("kv_append"); err != nil {
		return false, err
	}
	if st := c.sess.Append(key, value); st != engine.OK {
		return false, c.engineErr("kv_append")
	}
	return true, nil
}

// KVFetch returns the value stored under key. An absent key yields
// found=false and a nil error.
//
// A fetch callback registered for key runs before KVFetch returns; its
// failure is reported by CallbackErr, not by KVFetch.
func (c *Connection) KVFetch(key []byte) (found bool, value []byte, err error) {
	if err := c.check("kv_fetch"); err != nil {
		return false, nil, err
	}
	defer c.enter()()
	c.cbErr = nil

	value, st, err := c.env.readAll("kv_fetch", c.h, func(buf []byte, n *int64) engine.Status {
		return c.sess.Fetch(key, buf, n)
	})
	if err != nil {
		return false, nil, err
	}
	switch st {
	case engine.OK:
		return true, value, nil
	case engine.NotFound:
		return false, nil, nil
	default:
		return false, nil, c.engineErr("kv_fetch")
	}
}

// KVDelete makes sure key is absent. Deleting an absent key succeeds.
func (c *Connection) KVDelete(key []byte) (bool, error) {
	if err := c.check("kv_delete"); err != nil {
		return false, err
	}
	if st := c.sess.Delete(key); st != engine.OK && st != engine.NotFound {
		return false, c.engineErr("kv_delete")
	}
	return true, nil
}

// KVFetchCallback registers cb to run whenever key is fetched. A
// connection holds one registration: registering for another key replaces
// it. A nil cb clears the registration and tells the engine to stop
// invoking the bridge for key.
func (c *Connection) KVFetchCallback(key []byte, cb Callback, userData any) (bool, error) {
	if err := c.check("kv_fetch_callback"); err != nil {
		return false, err
	}

	if cb == nil {
		if st := c.sess.FetchCallback(key, nil, nil); st != engine.OK {
			return false, c.engineErr("kv_fetch_callback")
		}
		if c.fetch.key != nil && !bytes.Equal(c.fetch.key, key) {
			if st := c.sess.FetchCallback(c.fetch.key, nil, nil); st != engine.OK {
				return false, c.engineErr("kv_fetch_callback")
			}
		}
		c.fetch = fetchSlot{}
		return true, nil
	}

	if c.fetch.key != nil && !bytes.Equal(c.fetch.key, key) {
		if st := c.sess.FetchCallback(c.fetch.key, nil, nil); st != engine.OK {
			return false, c.engineErr("kv_fetch_callback")
		}
		c.fetch = fetchSlot{}
	}
	if st := c.sess.FetchCallback(key, fetchConsumer, c); st != engine.OK {
		return false, c.engineErr("kv_fetch_callback")
	}
	c.fetch = fetchSlot{fn: cb, userData: userData, key: bytes.Clone(key)}
	return true, nil
}

// CreateCursor opens a cursor over this connection's keys.
func (c *Connection) CreateCursor() (*Cursor, error) {
	if err := c.check("create_cursor"); err != nil {
		return nil, err
	}
	native, st := c.sess.CursorInit()
	if st != engine.OK {
		return nil, c.engineErr("create_cursor")
	}
	cur := &Cursor{conn: c, native: native}
	cur.h = c.env.reg.add(KindCursor, c.h, cur)
	c.cursors++
	c.env.log.Debug("cursor created", "handle", cur.h.id, "connection", c.h.id)
	return cur, nil
}

// Compile compiles script source into a VM.
func (c *Connection) Compile(src string) (*VM, error) {
	if err := c.check("compile"); err != nil {
		return nil, err
	}
	native, st := c.sess.Compile(src)
	if st != engine.OK {
		return nil, compileError("compile", c.h, c.sess.ErrLog())
	}
	return c.newVM(native), nil
}

// CompileFile compiles the script at path into a VM.
func (c *Connection) CompileFile(path string) (*VM, error) {
	if err := c.check("compile_file"); err != nil {
		return nil, err
	}
	native, st := c.sess.CompileFile(path)
	if st != engine.OK {
		return nil, compileError("compile_file", c.h, c.sess.ErrLog())
	}
	return c.newVM(native), nil
}

func (c *Connection) newVM(native engine.VM) *VM {
	v := &VM{conn: c, native: native}
	v.h = c.env.reg.add(KindVM, c.h, v)
	c.vms++
	c.env.log.Debug("vm compiled", "handle", v.h.id, "connection", c.h.id)
	return v
}

package bridge

import (
	"fmt"
	"strings"

	"github.com/roach88/kvbridge/internal/engine"
)

// SeekMode selects how Cursor.Seek matches the probe key.
type SeekMode int

const (
	// SeekExact positions on the key itself.
	SeekExact SeekMode = iota
	// SeekLE positions on the greatest key less than or equal to the probe.
	SeekLE
	// SeekGE positions on the smallest key greater than or equal to the
	// probe.
	SeekGE
)

var seekModeNames = [...]string{"exact", "le", "ge"}

func (m SeekMode) String() string {
	return seekModeNames[m.normalize()]
}

// normalize maps out-of-range modes to SeekExact.
func (m SeekMode) normalize() SeekMode {
	if m < SeekExact || m > SeekGE {
		return SeekExact
	}
	return m
}

func (m SeekMode) match() engine.Match {
	switch m.normalize() {
	case SeekLE:
		return engine.MatchLE
	case SeekGE:
		return engine.MatchGE
	default:
		return engine.MatchExact
	}
}

// ParseSeekMode parses "exact", "le" or "ge" (case-insensitive). The empty
// string means exact.
func ParseSeekMode(s string) (SeekMode, error) {
	switch strings.ToLower(s) {
	case "", "exact":
		return SeekExact, nil
	case "le":
		return SeekLE, nil
	case "ge":
		return SeekGE, nil
	default:
		return SeekExact, fmt.Errorf("invalid seek mode %q (want exact, le or ge)", s)
	}
}

// Cursor is a positioned iterator over a connection's keys.
//
// Lifecycle: created -> positioned (valid or invalid) -> released.
type Cursor struct {
	h      *handle
	conn   *Connection
	native engine.Cursor
}

// ID returns the handle ID.
func (c *Cursor) ID() string { return c.h.id }

func (c *Cursor) String() string { return c.h.String() }

func (c *Cursor) check(op string) error {
	return c.h.validate(KindCursor, op)
}

func (c *Cursor) engineErr(op string, st engine.Status) error {
	e := engineError(op, c.h, c.conn.sess.ErrLog())
	e.Status = st
	return e
}

// Seek positions the cursor. Out-of-range modes fall back to SeekExact. An
// exact seek that finds nothing returns false and no error.
func (c *Cursor) Seek(key []byte, mode SeekMode) (bool, error) {
	if err := c.check("cursor_seek"); err != nil {
		return false, err
	}
	mode = mode.normalize()
	switch st := c.native.Seek(key, mode.match()); {
	case st == engine.OK:
		return true, nil
	case st == engine.NotFound && mode == SeekExact:
		return false, nil
	default:
		return false, c.engineErr("cursor_seek", st)
	}
}

func (c *Cursor) move(op string, fn func() engine.Status) (bool, error) {
	if err := c.check(op); err != nil {
		return false, err
	}
	if st := fn(); st != engine.OK {
		return false, c.engineErr(op, st)
	}
	return true, nil
}

// FirstEntry positions on the smallest key. It fails on an empty store.
func (c *Cursor) FirstEntry() (bool, error) {
	return c.move("cursor_first_entry", c.native.First)
}

// LastEntry positions on the greatest key. It fails on an empty store.
func (c *Cursor) LastEntry() (bool, error) {
	return c.move("cursor_last_entry", c.native.Last)
}

// NextEntry moves forward. Moving past the last key fails and leaves the
// cursor invalid.
func (c *Cursor) NextEntry() (bool, error) {
	return c.move("cursor_next_entry", c.native.Next)
}

// PrevEntry moves backward. Moving before the first key fails and leaves
// the cursor invalid.
func (c *Cursor) PrevEntry() (bool, error) {
	return c.move("cursor_prev_entry", c.native.Prev)
}

// IsValidEntry reports whether the cursor is positioned on an entry. It
// never fails; a released cursor is not valid.
func (c *Cursor) IsValidEntry() bool {
	if !c.h.open {
		return false
	}
	return c.native.Valid()
}

// Key returns the key at the current position.
func (c *Cursor) Key() ([]byte, error) {
	return c.read("cursor_key", c.native.Key)
}

// Data returns the value at the current position.
func (c *Cursor) Data() ([]byte, error) {
	return c.read("cursor_data", c.native.Data)
}

func (c *Cursor) read(op string, call func(buf []byte, n *int64) engine.Status) ([]byte, error) {
	if err := c.check(op); err != nil {
		return nil, err
	}
	b, st, err := c.conn.env.readAll(op, c.h, call)
	if err != nil {
		return nil, err
	}
	if st != engine.OK {
		return nil, c.engineErr(op, st)
	}
	return b, nil
}

// DeleteEntry deletes the entry at the current position and moves to the
// following entry.
func (c *Cursor) DeleteEntry() (bool, error) {
	return c.move("cursor_delete_entry", c.native.Delete)
}

// Release releases the native cursor. It returns false if the cursor was
// already released.
//
// A native failure is reported, but the cursor is released on the bridge
// side either way.
func (c *Cursor) Release() (bool, error) {
	if !c.h.open {
		return false, nil
	}
	st := c.conn.sess.CursorRelease(c.native)
	c.conn.env.reg.retire(c.h)
	c.conn.cursors--
	if st != engine.OK {
		return false, c.engineErr("cursor_release", st)
	}
	c.conn.env.log.Debug("cursor released", "handle", c.h.id)
	return true, nil
}

// Reclaim releases the cursor if it is still open. It follows the same path
// as Release; failures are logged and returned.
func (c *Cursor) Reclaim() error {
	if !c.h.open {
		return nil
	}
	if _, err := c.Release(); err != nil {
		c.conn.env.log.Error("reclaim cursor failed", "handle", c.h.id, "error", err)
		return err
	}
	return nil
}

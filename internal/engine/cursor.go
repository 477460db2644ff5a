package engine

import (
	"bytes"
	"context"
)

// Cursor is a positioned iterator over the keys of a session, in byte
// order. A new cursor is not positioned on any entry.
type Cursor interface {
	Seek(key []byte, match Match) Status
	First() Status
	Last() Status
	Next() Status
	Prev() Status
	// Valid reports whether the cursor is positioned on an entry.
	Valid() bool
	// Key and Data follow the two-call protocol of Session.Fetch.
	Key(buf []byte, n *int64) Status
	Data(buf []byte, n *int64) Status
	// Delete removes the current entry and moves to the following one.
	Delete() Status
}

type cursor struct {
	s        *session
	key      []byte // nil when not positioned
	released bool
}

func (c *cursor) usable(op string) bool {
	if c.released {
		c.s.logf("%s: cursor is released", op)
		return false
	}
	return c.s.usable(op)
}

// land positions the cursor on the outcome of a store navigation call.
// A miss leaves the cursor unpositioned and reports miss.
func (c *cursor) land(op string, key []byte, found bool, err error, miss Status) Status {
	if err != nil {
		c.s.logf("%s: %v", op, err)
		c.key = nil
		return IOErr
	}
	if !found {
		c.key = nil
		c.s.logf("%s: no matching entry", op)
		return miss
	}
	c.key = key
	return OK
}

func (c *cursor) Seek(key []byte, match Match) Status {
	if !c.usable("cursor_seek") {
		return Invalid
	}
	k, found, err := c.s.store.Seek(context.Background(), key, match)
	return c.land("cursor_seek", k, found, err, NotFound)
}

func (c *cursor) First() Status {
	if !c.usable("cursor_first_entry") {
		return Invalid
	}
	k, found, err := c.s.store.First(context.Background())
	return c.land("cursor_first_entry", k, found, err, Done)
}

func (c *cursor) Last() Status {
	if !c.usable("cursor_last_entry") {
		return Invalid
	}
	k, found, err := c.s.store.Last(context.Background())
	return c.land("cursor_last_entry", k, found, err, Done)
}

func (c *cursor) Next() Status {
	if !c.usable("cursor_next_entry") {
		return Invalid
	}
	if c.key == nil {
		c.s.logf("cursor_next_entry: cursor is not positioned")
		return Done
	}
	k, found, err := c.s.store.Next(context.Background(), c.key)
	return c.land("cursor_next_entry", k, found, err, Done)
}

func (c *cursor) Prev() Status {
	if !c.usable("cursor_prev_entry") {
		return Invalid
	}
	if c.key == nil {
		c.s.logf("cursor_prev_entry: cursor is not positioned")
		return Done
	}
	k, found, err := c.s.store.Prev(context.Background(), c.key)
	return c.land("cursor_prev_entry", k, found, err, Done)
}

func (c *cursor) Valid() bool {
	return !c.released && !c.s.closed && c.key != nil
}

func (c *cursor) Key(buf []byte, n *int64) Status {
	if !c.usable("cursor_key") {
		return Invalid
	}
	if c.key == nil {
		c.s.logf("cursor_key: cursor is not positioned")
		return Invalid
	}
	if buf == nil {
		*n = int64(len(c.key))
		return OK
	}
	*n = int64(copy(buf, c.key))
	return OK
}

func (c *cursor) Data(buf []byte, n *int64) Status {
	if !c.usable("cursor_data") {
		return Invalid
	}
	if c.key == nil {
		c.s.logf("cursor_data: cursor is not positioned")
		return Invalid
	}
	value, found, err := c.s.store.Get(context.Background(), c.key)
	if err != nil {
		c.s.logf("cursor_data: %v", err)
		return IOErr
	}
	if !found {
		c.s.logf("cursor_data: entry %q no longer exists", c.key)
		return NotFound
	}
	if buf == nil {
		*n = int64(len(value))
		return OK
	}
	*n = int64(copy(buf, value))
	return OK
}

func (c *cursor) Delete() Status {
	if !c.usable("cursor_delete_entry") {
		return Invalid
	}
	if c.key == nil {
		c.s.logf("cursor_delete_entry: cursor is not positioned")
		return Invalid
	}
	deleted := bytes.Clone(c.key)
	if _, err := c.s.store.Delete(context.Background(), deleted); err != nil {
		c.s.logf("cursor_delete_entry: %v", err)
		return IOErr
	}
	k, found, err := c.s.store.Next(context.Background(), deleted)
	if err != nil {
		c.s.logf("cursor_delete_entry: %v", err)
		c.key = nil
		return IOErr
	}
	if !found {
		c.key = nil
		return OK
	}
	c.key = k
	return OK
}

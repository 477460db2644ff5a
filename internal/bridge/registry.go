package bridge

import (
	"fmt"
	"slices"
)

// Kind tags a handle with the type of object it refers to.
type Kind string

const (
	KindConnection Kind = "connection"
	KindCursor     Kind = "cursor"
	KindVM         Kind = "vm"
)

// handle is the tagged wrapper around every bridge object.
type handle struct {
	id     string
	kind   Kind
	open   bool
	parent *handle
	obj    any
}

// String renders the handle as "<kind> (<id>)", or "<kind> (closed)" once
// it is closed.
func (h *handle) String() string {
	if !h.open {
		return fmt.Sprintf("%s (closed)", h.kind)
	}
	return fmt.Sprintf("%s (%s)", h.kind, h.id)
}

// validate is the single check every public operation starts with.
func (h *handle) validate(kind Kind, op string) error {
	if h == nil || h.kind != kind {
		return newError(CodeInvalidHandle, op, h, "not a %s handle", kind)
	}
	if !h.open {
		return newError(CodeHandleClosed, op, h, "%s is closed", kind)
	}
	return nil
}

// Registry tracks every handle an Environment has created, so handles can
// be addressed by ID.
//
// Closed handles are retired: they stay addressable by ID, so looking one
// up reports HANDLE_CLOSED rather than INVALID_HANDLE, but the registry
// drops its references to the object and the parent. Each retired ID still
// costs one small map entry for the life of the Environment.
type Registry struct {
	ids   IDGenerator
	byID  map[string]*handle
	order []*handle
}

func newRegistry(ids IDGenerator) *Registry {
	return &Registry{ids: ids, byID: make(map[string]*handle)}
}

func (r *Registry) add(kind Kind, parent *handle, obj any) *handle {
	h := &handle{
		id:     r.ids.Generate(),
		kind:   kind,
		open:   true,
		parent: parent,
		obj:    obj,
	}
	r.byID[h.id] = h
	r.order = append(r.order, h)
	return h
}

// retire marks h closed and releases what the registry holds for it.
func (r *Registry) retire(h *handle) {
	h.open = false
	h.obj = nil
	h.parent = nil
	r.order = slices.DeleteFunc(r.order, func(x *handle) bool { return x == h })
}

func (r *Registry) resolve(id string, kind Kind, op string) (*handle, error) {
	h, ok := r.byID[id]
	if !ok {
		return nil, newError(CodeInvalidHandle, op, nil, "unknown handle %q", id)
	}
	if h.kind != kind {
		return nil, newError(CodeInvalidHandle, op, h, "handle is a %s, not a %s", h.kind, kind)
	}
	return h, nil
}

// Validate fails with INVALID_HANDLE when id is unknown or not of kind, and
// with HANDLE_CLOSED when the handle is no longer open.
func (r *Registry) Validate(id string, kind Kind) error {
	h, err := r.resolve(id, kind, "validate")
	if err != nil {
		return err
	}
	return h.validate(kind, "validate")
}

// Connection returns the connection registered under id. A closed
// connection is still returned; its methods report HANDLE_CLOSED.
// The same holds for Cursor and VM.
func (r *Registry) Connection(id string) (*Connection, error) {
	h, err := r.resolve(id, KindConnection, "lookup")
	if err != nil {
		return nil, err
	}
	if h.obj == nil {
		return &Connection{h: h}, nil
	}
	return h.obj.(*Connection), nil
}

// Cursor returns the cursor registered under id.
func (r *Registry) Cursor(id string) (*Cursor, error) {
	h, err := r.resolve(id, KindCursor, "lookup")
	if err != nil {
		return nil, err
	}
	if h.obj == nil {
		return &Cursor{h: h}, nil
	}
	return h.obj.(*Cursor), nil
}

// VM returns the VM registered under id.
func (r *Registry) VM(id string) (*VM, error) {
	h, err := r.resolve(id, KindVM, "lookup")
	if err != nil {
		return nil, err
	}
	if h.obj == nil {
		return &VM{h: h}, nil
	}
	return h.obj.(*VM), nil
}

// Kind returns the kind of the handle registered under id.
func (r *Registry) Kind(id string) (Kind, bool) {
	h, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return h.kind, true
}

// Live returns the IDs of open handles of kind, in creation order.
func (r *Registry) Live(kind Kind) []string {
	var ids []string
	for _, h := range r.order {
		if h.open && h.kind == kind {
			ids = append(ids, h.id)
		}
	}
	return ids
}

func (r *Registry) live() []*handle {
	var hs []*handle
	for _, h := range r.order {
		if h.open {
			hs = append(hs, h)
		}
	}
	return hs
}

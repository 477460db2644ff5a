// Package bridge exposes the engine to host code through opaque, validated
// handles.
//
// HANDLES:
//
// Environment -> Connection -> {Cursor, VM}. Every object carries a tagged
// handle (ID, kind, open flag, parent). Every public operation validates its
// handle before touching the engine: a wrong kind fails with
// INVALID_HANDLE, a closed handle with HANDLE_CLOSED.
//
// A Connection counts its open cursors and VMs and refuses to close while
// either count is non-zero (RESOURCE_BUSY). Close and Release are
// idempotent: the first call returns true, later calls return false.
//
// CALLBACKS:
//
// Fetch callbacks (one slot per Connection) and output callbacks (one slot
// per VM) run synchronously while the engine call is still on the stack.
// Each invocation pushes a frame on the Environment's host call stack,
// runs the callback under recover, and truncates the stack back to its
// saved depth. A failing callback never fails the engine call; its error
// is logged and kept in CallbackErr.
//
// While a KVFetch or Exec is in progress its Connection (and VM) is marked
// as inside a native call. Closing or releasing it from a callback fails
// with RESOURCE_BUSY.
//
// RECLAMATION:
//
// There are no finalizers. Reclaim runs the same path as Close/Release and
// logs failures; Environment.Sweep reclaims every live handle, children
// first.
//
// Nothing in this package is safe for concurrent use.
package bridge

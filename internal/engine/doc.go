// Package engine implements the native key-value and script engine that the
// bridge drives.
//
// The engine speaks a C-style protocol on purpose: every call returns a
// Status, and the text describing the last failure is kept in the session's
// error log. Callers consult ErrLog only after a non-OK status; on success
// paths the log may hold a stale message from an earlier failure.
//
// ARCHITECTURE:
//
// Session:
// One open database (internal/store) plus the per-key fetch consumers and
// the bookkeeping for live cursors and VMs. Closing a session commits.
//
// Two-call reads:
// Fetch, Cursor.Key and Cursor.Data take a destination buffer and a length
// pointer. A nil buffer probes the length; a second call with a buffer of
// that size copies the bytes.
//
// Consumers:
// Fetch consumers (per key) and VM output consumers are invoked
// synchronously, on the caller's goroutine, before the engine call returns.
// A consumer returning Abort stops the operation.
//
// The engine is single-threaded. Nothing in this package is safe for
// concurrent use.
package engine

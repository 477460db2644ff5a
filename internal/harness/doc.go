// Package harness runs YAML scenarios against the handle bridge and records
// a deterministic trace of every operation and callback delivery.
//
// # Scenario Format
//
//	name: cursor_blocks_close
//	description: "An open cursor keeps its connection busy"
//	steps:
//	  - op: connect
//	    as: db
//	  - op: kv_store
//	    on: db
//	    key: a
//	    value: "1"
//	  - op: create_cursor
//	    on: db
//	    as: cur
//	  - op: close
//	    on: db
//	    expect: { error: RESOURCE_BUSY }
//	assertions:
//	  - type: trace_count
//	    op: close
//	    count: 1
//
// Steps address handles by the name given in "as". A name that was never
// bound is passed through as a raw handle ID, so scenarios can exercise
// INVALID_HANDLE directly.
//
// # Assertion Types
//
//   - trace_contains: an op (optionally restricted to a handle) appears in the trace
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: a key holds a value (or is absent) when read through a connection
//
// Traces use sequential handle IDs ("h-1", "h-2", ...) so golden files are
// stable across runs.
package harness

// Package store provides the SQLite-backed storage behind an engine session.
//
// The store keeps a single ordered key-value table:
//   - kv: key BLOB PRIMARY KEY, value BLOB (encoded by the session codec)
//   - kv_meta: small name/value table, currently only the codec name
//
// # Critical Patterns
//
// CP-1: One Implicit Transaction
//   - Every read and write runs inside the store's open transaction
//   - Commit and Rollback end it and immediately begin the next one
//   - Close commits whatever is pending
//
// CP-2: Byte Ordering
//   - Keys are compared as BLOBs (memcmp), so cursor order is byte order
//   - Navigation queries always use ORDER BY k with LIMIT 1
//
// CP-3: Codec Is Sticky
//   - The codec recorded in kv_meta on first open wins on every reopen
//   - Values are decoded before they leave the package
//
// # Database Configuration
//
//   - WAL mode for file databases (skipped for :memory:)
//   - busy_timeout from Options (default 5000ms)
//   - single pooled connection, since the transaction pins it
package store

// Package config loads kvbridge configuration.
//
// Configuration is read from an optional YAML file on top of built-in
// defaults, then overridden by KVBRIDGE_* environment variables, then
// validated:
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: text       # text or json
//	  output: stderr     # stdout or stderr
//	storage:
//	  source: ./kv.db    # database path, or ":mem:"
//	  codec: none        # none, snappy, zstd, lz4 (new databases only)
//	  busy_timeout: 5000 # milliseconds
//	  wal: true
//	bridge:
//	  max_buffer: 1073741824
//	  max_callback_depth: 64
package config

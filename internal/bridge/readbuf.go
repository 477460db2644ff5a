package bridge

import "github.com/roach88/kvbridge/internal/engine"

// DefaultMaxBuffer is the largest value a single read may allocate.
const DefaultMaxBuffer int64 = 1 << 30

// readAll runs the two-call protocol: call probes the length with a nil
// buffer, then fills a buffer of exactly that size. A non-OK status from
// either call is returned with a nil slice; the partial buffer is dropped.
func (e *Environment) readAll(op string, h *handle, call func(buf []byte, n *int64) engine.Status) ([]byte, engine.Status, error) {
	var n int64
	if st := call(nil, &n); st != engine.OK {
		return nil, st, nil
	}
	if n < 0 || n > e.maxBuffer {
		return nil, engine.OK, newError(CodeAllocationError, op, h,
			"cannot allocate %d bytes (limit %d)", n, e.maxBuffer)
	}

	buf := make([]byte, n)
	if st := call(buf, &n); st != engine.OK {
		return nil, st, nil
	}
	if n > int64(len(buf)) {
		n = int64(len(buf))
	}
	return buf[:n], engine.OK, nil
}

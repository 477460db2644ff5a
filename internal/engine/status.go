package engine

import "fmt"

// Status is the result code of every engine call.
type Status int

const (
	// OK means the call succeeded.
	OK Status = iota
	// NotFound means the key, entry or variable does not exist.
	NotFound
	// Done means a cursor ran past either end of the store.
	Done
	// CompileErr means a script failed to compile.
	CompileErr
	// VMErr means a compiled script failed while executing.
	VMErr
	// IOErr means the storage layer failed.
	IOErr
	// Invalid means the call was made on a closed or released object or
	// with a malformed argument.
	Invalid
	// Abort means a consumer asked the engine to stop.
	Abort
)

var statusNames = map[Status]string{
	OK:         "OK",
	NotFound:   "NOTFOUND",
	Done:       "DONE",
	CompileErr: "COMPILE_ERR",
	VMErr:      "VM_ERR",
	IOErr:      "IOERR",
	Invalid:    "INVALID",
	Abort:      "ABORT",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Consumer receives bytes delivered synchronously by the engine.
// data is only valid for the duration of the call.
type Consumer func(data []byte, userData any) Status

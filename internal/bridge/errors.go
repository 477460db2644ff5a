package bridge

import (
	"errors"
	"fmt"

	"github.com/roach88/kvbridge/internal/engine"
)

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// CodeInvalidHandle indicates an unknown handle or a handle of the wrong
	// kind.
	CodeInvalidHandle ErrorCode = "INVALID_HANDLE"

	// CodeHandleClosed indicates a handle that was already closed or
	// released.
	CodeHandleClosed ErrorCode = "HANDLE_CLOSED"

	// CodeResourceBusy indicates a close or release attempted while
	// children are outstanding or while the handle is inside a native call.
	CodeResourceBusy ErrorCode = "RESOURCE_BUSY"

	// CodeEngineError indicates the engine returned a non-OK status.
	CodeEngineError ErrorCode = "ENGINE_ERROR"

	// CodeCompileError indicates a script failed to compile.
	CodeCompileError ErrorCode = "COMPILE_ERROR"

	// CodeAllocationError indicates a read buffer could not be allocated.
	CodeAllocationError ErrorCode = "ALLOCATION_ERROR"
)

const (
	defaultEngineMessage  = "unknown engine error"
	defaultCompileMessage = "Compilation Error"
)

// Error is the failure result of every bridge operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed, e.g. "kv_fetch".
	Op string

	// Handle is the ID of the handle the operation was called on.
	Handle string

	// Message is the engine diagnostic or a description of the misuse.
	Message string

	// Status is the engine status behind an ENGINE_ERROR raised by a
	// cursor call. It is engine.OK everywhere else.
	Status engine.Status
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrInvalidHandle = &Error{Code: CodeInvalidHandle, Message: "invalid handle"}
	ErrHandleClosed  = &Error{Code: CodeHandleClosed, Message: "handle is closed"}
	ErrResourceBusy  = &Error{Code: CodeResourceBusy, Message: "resource busy"}
	ErrEngine        = &Error{Code: CodeEngineError, Message: defaultEngineMessage}
	ErrCompile       = &Error{Code: CodeCompileError, Message: defaultCompileMessage}
	ErrAllocation    = &Error{Code: CodeAllocationError, Message: "allocation failed"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Handle != "" {
		msg += fmt.Sprintf(" (handle=%s)", e.Handle)
	}
	return "kvbridge: " + msg
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, op string, h *handle, format string, args ...any) *Error {
	e := &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
	if h != nil {
		e.Handle = h.id
	}
	return e
}

// engineError builds an ENGINE_ERROR from the engine's log text.
func engineError(op string, h *handle, log string) *Error {
	if log == "" {
		log = defaultEngineMessage
	}
	return newError(CodeEngineError, op, h, "%s", log)
}

func compileError(op string, h *handle, log string) *Error {
	if log == "" {
		log = defaultCompileMessage
	}
	return newError(CodeCompileError, op, h, "%s", log)
}

// IsNoEntry reports whether err is a cursor ENGINE_ERROR caused by running
// out of entries (moving past either end, or a seek with no match), as
// opposed to a storage failure.
func IsNoEntry(err error) bool {
	var be *Error
	if !errors.As(err, &be) || be.Code != CodeEngineError {
		return false
	}
	return be.Status == engine.Done || be.Status == engine.NotFound
}

// CodeOf returns the code of the *Error in err's chain, or "" when there is
// none.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsInvalidHandle returns true if err is an INVALID_HANDLE error.
func IsInvalidHandle(err error) bool { return CodeOf(err) == CodeInvalidHandle }

// IsHandleClosed returns true if err is a HANDLE_CLOSED error.
func IsHandleClosed(err error) bool { return CodeOf(err) == CodeHandleClosed }

// IsBusy returns true if err is a RESOURCE_BUSY error.
func IsBusy(err error) bool { return CodeOf(err) == CodeResourceBusy }

// IsEngineError returns true if err is an ENGINE_ERROR.
func IsEngineError(err error) bool { return CodeOf(err) == CodeEngineError }

// IsCompileError returns true if err is a COMPILE_ERROR.
func IsCompileError(err error) bool { return CodeOf(err) == CodeCompileError }

// IsAllocationError returns true if err is an ALLOCATION_ERROR.
func IsAllocationError(err error) bool { return CodeOf(err) == CodeAllocationError }

package rpc

import "fmt"

// JSON-RPC error codes used on the wire. The -32xxx codes are the standard
// protocol classes; -32000 is the runtime catch-all for "backend
// unavailable / bad state" failures that are recoverable by the caller.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeBackendError   = -32000
)

// Error is a protocol-level error that maps directly onto the error member
// of a response envelope.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ParseError creates the error for unparseable request lines
func ParseError() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

// InvalidRequest creates the error for structurally invalid envelopes
func InvalidRequest(reason string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid request: " + reason}
}

// MethodNotFound creates the error for unrecognized method names
func MethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "Method not found: " + method}
}

// MissingParam creates the error for a missing or wrong-typed required parameter
func MissingParam(name string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Missing required param: " + name}
}

// InvalidParam creates the error for a parameter with an invalid value
func InvalidParam(name string, value interface{}, expected string) *Error {
	return &Error{
		Code:    CodeInvalidParams,
		Message: fmt.Sprintf("Invalid %s: %v (expected: %s)", name, value, expected),
	}
}

// BackendUnavailable creates the error for a collaborator that is not wired up
func BackendUnavailable(what string) *Error {
	return &Error{Code: CodeBackendError, Message: what + " not available"}
}

// BackendError wraps a collaborator failure in the runtime error class
func BackendError(err error) *Error {
	return &Error{Code: CodeBackendError, Message: err.Error()}
}

// Internalf creates a runtime error from a format string
func Internalf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeBackendError, Message: fmt.Sprintf(format, args...)}
}

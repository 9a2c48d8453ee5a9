package core

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// Code is a stable error code surfaced to callers and telemetry. Codes are
// part of the external contract; never rename an existing value.
type Code string

const (
	// CodeUnknownIntent indicates the classified intent has no registry entry.
	CodeUnknownIntent Code = "UNKNOWN_INTENT"
	// CodeUnknownAgent indicates an agent id with no directory entry.
	CodeUnknownAgent Code = "UNKNOWN_AGENT"
	// CodeRoutingFailure indicates no resolvable agent at all, including
	// transport retries exhausted against the selected agent.
	CodeRoutingFailure Code = "ROUTING_FAILURE"
	// CodeTransport indicates a transient transport failure (timeout,
	// connection reset). The only retriable code.
	CodeTransport Code = "TRANSPORT"
	// CodeAgentSemantic indicates the agent rejected the request. Never retried.
	CodeAgentSemantic Code = "AGENT_SEMANTIC"
	// CodeNormalization indicates the agent violated its content-type
	// contract. Always fatal for the request, never retried.
	CodeNormalization Code = "NORMALIZATION"
	// CodeCancelled indicates caller-side cancellation of an in-flight request.
	CodeCancelled Code = "CANCELLED"
	// CodeStoreUnavailable indicates the conversation store failed.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	// CodeNoSuchConversation indicates a message referenced a conversation
	// that does not exist.
	CodeNoSuchConversation Code = "NO_SUCH_CONVERSATION"
	// CodeInvalidArgument indicates malformed caller input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeUnknown is the fallback for errors outside the taxonomy.
	CodeUnknown Code = "UNKNOWN"
)

// Error is the coded error type used across the orchestrator. It carries a
// taxonomy Code, a human-readable message and an optional wrapped cause kept
// for diagnostics.
type Error struct {
	code    Code
	message string
	cause   error
}

// NewError creates a coded error.
func NewError(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// NewErrorf creates a coded error with a formatted message.
func NewErrorf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause in a coded error so the original failure stays
// reachable through errors.Unwrap while callers branch on the code.
func WrapError(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches two coded errors by code, enabling errors.Is against
// NewError(code, "") sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if e == nil || !ok || t == nil {
		return false
	}
	return e.code == t.code
}

// Code returns the taxonomy code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the human-readable message without the code prefix.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// AsError extracts a coded error from an error chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf resolves the taxonomy code of any error, mapping context
// cancellation to CodeCancelled and everything else outside the taxonomy to
// CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if e, ok := AsError(err); ok {
		return e.Code()
	}
	if stdErrors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// Retryable reports whether err may be retried by the dispatcher. Only
// transient transport failures qualify; semantic, normalization and store
// failures never do.
func Retryable(err error) bool { return CodeOf(err) == CodeTransport }

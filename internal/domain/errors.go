package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — wrap with NewDomainError to add operation context.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Authentication / authorization.
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNonceMismatch  = fmt.Errorf("state nonce mismatch: %w", ErrAuthFailed)
	ErrTokenRefresh   = fmt.Errorf("silent token refresh failed")
	ErrForbidden      = fmt.Errorf("forbidden: intent not authorized")
	ErrNoRelationship = fmt.Errorf("no partner relationship for tenant")

	// Conversation state.
	ErrPrincipalNotFound = fmt.Errorf("principal: %w", ErrNotFound)
	ErrNonceNotFound     = fmt.Errorf("nonce: %w", ErrNotFound)
	ErrInvalidContext    = fmt.Errorf("operation context invalid")

	// External collaborators.
	ErrServiceFailure = fmt.Errorf("external service failure")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Dispatcher.Handle")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown        ErrorCode = "UNKNOWN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeDuplicate      ErrorCode = "DUPLICATE"
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeAuthFailed     ErrorCode = "AUTH_FAILED"
	CodeNonceMismatch  ErrorCode = "NONCE_MISMATCH"
	CodeTokenRefresh   ErrorCode = "TOKEN_REFRESH"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNoRelationship ErrorCode = "NO_RELATIONSHIP"
	CodeInvalidContext ErrorCode = "INVALID_CONTEXT"
	CodeServiceFailure ErrorCode = "SERVICE_FAILURE"
)

// errorCodeMap maps sentinel errors to their monitoring codes. More specific
// sentinels must precede their category fallbacks in errorCodeOrder.
var errorCodeMap = map[error]ErrorCode{
	ErrNonceMismatch:     CodeNonceMismatch,
	ErrAuthFailed:        CodeAuthFailed,
	ErrTokenRefresh:      CodeTokenRefresh,
	ErrForbidden:         CodeForbidden,
	ErrNoRelationship:    CodeNoRelationship,
	ErrInvalidContext:    CodeInvalidContext,
	ErrServiceFailure:    CodeServiceFailure,
	ErrPrincipalNotFound: CodeNotFound,
	ErrNonceNotFound:     CodeNotFound,
	ErrNotFound:          CodeNotFound,
	ErrDuplicate:         CodeDuplicate,
	ErrInvalidInput:      CodeInvalidInput,
}

// errorCodeOrder fixes the errors.Is walk order so that wrapped sentinels
// (e.g. ErrNonceMismatch wrapping ErrAuthFailed) resolve to the most
// specific code.
var errorCodeOrder = []error{
	ErrNonceMismatch,
	ErrTokenRefresh,
	ErrForbidden,
	ErrNoRelationship,
	ErrInvalidContext,
	ErrServiceFailure,
	ErrPrincipalNotFound,
	ErrNonceNotFound,
	ErrAuthFailed,
	ErrNotFound,
	ErrDuplicate,
	ErrInvalidInput,
}

// ErrorCodeOf returns the monitoring code for the given error. It unwraps
// DomainError and walks the chain with errors.Is. Returns CodeUnknown when
// no sentinel matches.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for _, sentinel := range errorCodeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}

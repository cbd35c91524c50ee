package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a version-engine failure. Callers branch on the code,
// never on the message.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeDuplicateKey       ErrorCode = "duplicate_key"
	CodeInvalidVersion     ErrorCode = "invalid_version"
	CodeConflict           ErrorCode = "conflict"
	CodeNotAuthorized      ErrorCode = "not_authorized"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrDuplicateKey   = &Error{Code: CodeDuplicateKey}
	ErrInvalidVersion = &Error{Code: CodeInvalidVersion}
	ErrConflict       = &Error{Code: CodeConflict}
	ErrNotAuthorized  = &Error{Code: CodeNotAuthorized}
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	fmt.Fprintf(&b, " (%s)", e.Code)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrConflict) match any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Cause == nil && t.Code == e.Code
}

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Errorf is NewError with a formatted message and no cause.
func Errorf(code ErrorCode, op, format string, args ...any) error {
	return NewError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap tags err with code. The outermost code wins for IsCode and CodeOf.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code && code != ""
}

// CodeOf returns the outermost code in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the caller may safely repeat the operation.
func IsRetryable(err error) bool {
	return IsCode(err, CodeRetryable)
}

// NotAuthorized is produced by the calling layer; the engine only passes it
// through so callers share one taxonomy.
func NotAuthorized(op, message string) error {
	return NewError(CodeNotAuthorized, op, message, nil)
}

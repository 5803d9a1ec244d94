package appleid

import (
	"fmt"
	"strconv"
)

// ErrorCode represents token construction error categories.
type ErrorCode string

const (
	ErrCodeMissingOption     ErrorCode = "missing_option"
	ErrCodeInvalidOption     ErrorCode = "invalid_option"
	ErrCodeTokenVerification ErrorCode = "token_verification_failed"
	ErrCodeEmptyPayload      ErrorCode = "empty_payload"
	ErrCodeKeySetUnavailable ErrorCode = "keyset_unavailable"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMissingOption:     "Required option not passed",
	ErrCodeInvalidOption:     "Invalid option",
	ErrCodeTokenVerification: "Identity token verification failed",
	ErrCodeEmptyPayload:      "Got no data within identity token",
	ErrCodeKeySetUnavailable: "Apple key set unavailable",
}

// Error wraps construction errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

func missingOption(name string) error {
	return &Error{
		Code:    ErrCodeMissingOption,
		Message: errorMessages[ErrCodeMissingOption] + ": " + strconv.Quote(name),
	}
}

// internal/engine/errors.go
package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeTimeout     ErrorCode = "TIMEOUT"
	ErrCodeExtraction  ErrorCode = "EXTRACTION"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeNavigation  ErrorCode = "NAVIGATION"
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
	ErrCodeCookie      ErrorCode = "COOKIE"
	ErrCodeBrowser     ErrorCode = "BROWSER"
)

// Sentinels for errors.Is. Any EngineError with the same code matches.
var (
	ErrTimeout     = &EngineError{Code: ErrCodeTimeout, Message: "deadline exceeded"}
	ErrExtraction  = &EngineError{Code: ErrCodeExtraction, Message: "extraction failed"}
	ErrNotFound    = &EngineError{Code: ErrCodeNotFound, Message: "not found"}
	ErrNavigation  = &EngineError{Code: ErrCodeNavigation, Message: "navigation failed"}
	ErrUnsupported = &EngineError{Code: ErrCodeUnsupported, Message: "unsupported target"}
	ErrCookie      = &EngineError{Code: ErrCodeCookie, Message: "cookie jar error"}
	ErrBrowser     = &EngineError{Code: ErrCodeBrowser, Message: "browser error"}
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Timeout builds a TIMEOUT error for the given URL.
func Timeout(url string, err error) *EngineError {
	return NewEngineError(ErrCodeTimeout, "timed out waiting for "+url, err).WithDetail("url", url)
}

// IsTimeout reports whether err is a timeout, either classified or a raw context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Dataset normalization errors
	ErrCodeInvalidStructure ErrorCode = "INVALID_STRUCTURE"
	ErrCodeMissingContent   ErrorCode = "MISSING_CONTENT"
	ErrCodeNoLanguageData   ErrorCode = "NO_LANGUAGE_DATA"

	// Confluence errors
	ErrCodePageFetch    ErrorCode = "PAGE_FETCH"
	ErrCodePageParse    ErrorCode = "PAGE_PARSE"
	ErrCodePageNotFound ErrorCode = "PAGE_NOT_FOUND"
	ErrCodeAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrCodeAccessDenied ErrorCode = "ACCESS_DENIED"

	// Cache errors
	ErrCodeCacheRead  ErrorCode = "CACHE_READ"
	ErrCodeCacheWrite ErrorCode = "CACHE_WRITE"

	// Configuration errors
	ErrCodeConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse ErrorCode = "CONFIG_PARSE"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error represents a structured lockey error
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	UserMessage string
}

// New creates a new structured error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with lockey error context
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the human-friendly message returned to users.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString("}")
	}

	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	lockeyErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return lockeyErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	lockeyErr, ok := err.(*Error)
	if !ok {
		return ErrCodeInternal
	}
	return lockeyErr.Code
}

// UserFacing returns the user message when set, the internal message otherwise.
func UserFacing(err error) string {
	if err == nil {
		return ""
	}
	if lockeyErr, ok := err.(*Error); ok && lockeyErr.UserMessage != "" {
		return lockeyErr.UserMessage
	}
	return err.Error()
}

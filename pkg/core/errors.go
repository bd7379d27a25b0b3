package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, index_out_of_range, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code, so
// decorated copies of a sentinel still match it.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := e.clone()
	c.Details = merged
	return c
}

func (e *ExecutionError) clone() *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	if err != nil {
		return ErrCategoryConnection
	}
	return ErrCategoryNone
}

// CodeOf returns the machine-readable code of err, or "" if it carries none.
func CodeOf(err error) string {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// Predefined errors
var (
	// Lookup errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrItemNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "item_not_found",
		Message:  "item not found in list",
	}
	ErrActionNotFound = &ExecutionError{
		Category: ErrCategoryStructure,
		Code:     "action_not_found",
		Message:  "no invocable control found",
	}

	// Structural errors
	ErrPrecondition = &ExecutionError{
		Category: ErrCategoryStructure,
		Code:     "precondition_failed",
		Message:  "expected controls are not present",
	}
	ErrIndexOutOfRange = &ExecutionError{
		Category: ErrCategoryStructure,
		Code:     "index_out_of_range",
		Message:  "control index out of range",
	}
	ErrControlMisaligned = &ExecutionError{
		Category: ErrCategoryStructure,
		Code:     "control_misaligned",
		Message:  "controls are not positionally aligned with list items",
	}

	// Descriptor errors
	ErrParse = &ExecutionError{
		Category: ErrCategoryParse,
		Code:     "parse_error",
		Message:  "malformed item descriptor",
	}

	// Post-condition and scenario errors
	ErrVerification = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "verification_failed",
		Message:  "post-action state does not match expectation",
	}
	ErrAssertion = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_failed",
		Message:  "assertion failed",
	}
	ErrScreenNotVerified = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "screen_not_verified",
		Message:  "screen could not be verified",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}

	// Connection errors
	ErrSessionFailed = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_failed",
		Message:  "could not create automation session",
	}
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// App errors
	ErrAppNotForeground = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "app_not_foreground",
		Message:  "application is not in the foreground",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeSchedule          = "SCHEDULE_ERROR"
	ErrCodeStore             = "STORE_ERROR"
)

// RepflowError is the structured error type for all repflow operations.
type RepflowError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	StepIndex int            `json:"step_index,omitempty"` // 1-based flattened index, 0 = unset
	Cause     error          `json:"-"`
}

func (e *RepflowError) Error() string {
	if e.StepIndex > 0 {
		return fmt.Sprintf("[%s] step %d: %s", e.Code, e.StepIndex, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *RepflowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new RepflowError.
func NewError(code, message string) *RepflowError {
	return &RepflowError{Code: code, Message: message}
}

// NewErrorf creates a new RepflowError with a formatted message.
func NewErrorf(code, format string, args ...any) *RepflowError {
	return &RepflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a 1-based flattened step index to the error.
func (e *RepflowError) WithStep(index int) *RepflowError {
	e.StepIndex = index
	return e
}

// WithCause attaches an underlying cause.
func (e *RepflowError) WithCause(err error) *RepflowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *RepflowError) WithDetails(details map[string]any) *RepflowError {
	e.Details = details
	return e
}

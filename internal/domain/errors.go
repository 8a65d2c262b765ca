// Package domain defines core types and errors for the query gateway.
package domain

import "fmt"

// ValidationError indicates invalid input, such as a malformed request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// QueryRejectedError indicates the safety filter refused a statement.
type QueryRejectedError struct {
	Message string
}

func (e *QueryRejectedError) Error() string { return e.Message }

// InitError indicates a step of engine initialization failed. It is fatal for
// the session: once returned, the session never reaches the ready state.
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize engine (%s): %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// EngineError indicates the engine failed to execute a statement.
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string { return e.Message }

func (e *EngineError) Unwrap() error { return e.Err }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrQueryRejected creates a QueryRejectedError with a formatted message.
func ErrQueryRejected(format string, args ...interface{}) *QueryRejectedError {
	return &QueryRejectedError{Message: fmt.Sprintf(format, args...)}
}

// ErrEngine wraps an engine failure. The message is the engine's own message.
func ErrEngine(err error) *EngineError {
	return &EngineError{Message: err.Error(), Err: err}
}

package domain

import "fmt"

// ErrorKind is the closed failure taxonomy. Every raw failure maps to
// exactly one kind.
type ErrorKind string

const (
	ErrNetwork    ErrorKind = "network"
	ErrTimeout    ErrorKind = "timeout"
	ErrValidation ErrorKind = "validation"
	ErrPermission ErrorKind = "permission"
	ErrServer     ErrorKind = "server"
	ErrClient     ErrorKind = "client"
	ErrUnknown    ErrorKind = "unknown"
)

// Retryable reports whether failures of this kind are worth retrying.
// Network, Timeout and Server are transient; the rest will fail the same
// way on every attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrNetwork, ErrTimeout, ErrServer:
		return true
	default:
		return false
	}
}

// ClassifiedError is the only error shape that crosses the engine boundary.
type ClassifiedError struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewClassifiedError builds an error of the given kind with retryability
// derived from the kind.
func NewClassifiedError(kind ErrorKind, message string) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Retryable: kind.Retryable(), Message: message}
}

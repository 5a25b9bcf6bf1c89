package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCategory represents the classes of failure the evolution engine distinguishes
type ErrorCategory string

const (
	// Per-genome failures: the genome is rejected or marked FAILED, the generation continues
	ErrorCategoryValidation       ErrorCategory = "VALIDATION"
	ErrorCategoryInsufficientData ErrorCategory = "INSUFFICIENT_DATA"

	// Run-level failures: the run is aborted or never starts
	ErrorCategoryIncompatibleParents ErrorCategory = "INCOMPATIBLE_PARENTS"
	ErrorCategoryPersistence         ErrorCategory = "PERSISTENCE"
	ErrorCategoryConfiguration       ErrorCategory = "CONFIG"
)

// Sentinels for errors.Is matching. Any EvolutionError with the same category matches.
var (
	ErrValidation          = &EvolutionError{Category: ErrorCategoryValidation}
	ErrInsufficientData    = &EvolutionError{Category: ErrorCategoryInsufficientData}
	ErrIncompatibleParents = &EvolutionError{Category: ErrorCategoryIncompatibleParents}
	ErrPersistence         = &EvolutionError{Category: ErrorCategoryPersistence}
	ErrConfiguration       = &EvolutionError{Category: ErrorCategoryConfiguration}
)

// EvolutionError represents a categorized error with context
type EvolutionError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *EvolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s", e.Category, e.Component, e.Operation)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *EvolutionError) Unwrap() error {
	return e.Underlying
}

// Is reports category equality so callers can match against the package sentinels
func (e *EvolutionError) Is(target error) bool {
	t, ok := target.(*EvolutionError)
	if !ok {
		return false
	}
	return t.Category == e.Category
}

// IsRetryable returns whether this error can be retried
func (e *EvolutionError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error must abort the run
func (e *EvolutionError) IsFatal() bool {
	switch e.Category {
	case ErrorCategoryIncompatibleParents, ErrorCategoryPersistence, ErrorCategoryConfiguration:
		return true
	default:
		return false
	}
}

// WithContext adds context information to the error
func (e *EvolutionError) WithContext(key string, value interface{}) *EvolutionError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *EvolutionError) WithRetryable(retryable bool) *EvolutionError {
	e.Retryable = retryable
	return e
}

// NewEvolutionError creates a new categorized error
func NewEvolutionError(category ErrorCategory, component, operation, message string) *EvolutionError {
	return &EvolutionError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: category == ErrorCategoryPersistence,
	}
}

// WrapError wraps an existing error with evolution error context
func WrapError(err error, category ErrorCategory, component, operation string) *EvolutionError {
	if err == nil {
		return nil
	}
	e := NewEvolutionError(category, component, operation, "")
	e.Underlying = err
	return e
}

// Common error constructors

func NewValidationError(component, operation, format string, args ...interface{}) *EvolutionError {
	return NewEvolutionError(ErrorCategoryValidation, component, operation, fmt.Sprintf(format, args...))
}

func NewInsufficientDataError(component, operation string, have, need int) *EvolutionError {
	return NewEvolutionError(ErrorCategoryInsufficientData, component, operation,
		fmt.Sprintf("window has %d bars, need at least %d", have, need)).
		WithContext("have", have).
		WithContext("need", need)
}

// NewInsufficientSpanError reports a window that has enough bars but covers too little time
func NewInsufficientSpanError(component, operation string, have, need time.Duration) *EvolutionError {
	return NewEvolutionError(ErrorCategoryInsufficientData, component, operation,
		fmt.Sprintf("window spans %s, need at least %s", have, need)).
		WithContext("span", have.String()).
		WithContext("required_span", need.String())
}

func NewIncompatibleParentsError(component, operation, message string) *EvolutionError {
	return NewEvolutionError(ErrorCategoryIncompatibleParents, component, operation, message)
}

func NewPersistenceError(component, operation string, err error) *EvolutionError {
	return WrapError(err, ErrorCategoryPersistence, component, operation)
}

func NewConfigurationError(component, operation, format string, args ...interface{}) *EvolutionError {
	return NewEvolutionError(ErrorCategoryConfiguration, component, operation, fmt.Sprintf(format, args...))
}

// RecoveryAction is what the engine does with an error of a given category
type RecoveryAction string

const (
	RecoveryActionReject     RecoveryAction = "REJECT"
	RecoveryActionMarkFailed RecoveryAction = "MARK_FAILED"
	RecoveryActionRetry      RecoveryAction = "RETRY"
	RecoveryActionAbort      RecoveryAction = "ABORT"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *EvolutionError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryValidation:
		return RecoveryActionReject
	case ErrorCategoryInsufficientData:
		return RecoveryActionMarkFailed
	case ErrorCategoryPersistence:
		if e.Retryable {
			return RecoveryActionRetry
		}
		return RecoveryActionAbort
	default:
		return RecoveryActionAbort
	}
}

// CategoryOf returns the category of err, or an empty category for foreign errors
func CategoryOf(err error) ErrorCategory {
	var e *EvolutionError
	if stderrors.As(err, &e) {
		return e.Category
	}
	return ""
}

package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies a failure class
type ErrorCode string

const (
	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"

	// Platform errors
	ErrCodeAuth             ErrorCode = "AUTH_ERROR"
	ErrCodeDatasetSelection ErrorCode = "DATASET_SELECTION_ERROR"
	ErrCodeSimulation       ErrorCode = "SIMULATION_ERROR"
	ErrCodeAlphaCheck       ErrorCode = "ALPHA_CHECK_ERROR"
	ErrCodePlatformAPI      ErrorCode = "PLATFORM_API_ERROR"

	// AI errors
	ErrCodeGeneration      ErrorCode = "GENERATION_ERROR"
	ErrCodeInvalidResponse ErrorCode = "INVALID_AI_RESPONSE"

	// Persistence errors
	ErrCodeCheckpoint   ErrorCode = "CHECKPOINT_ERROR"
	ErrCodeDBConnection ErrorCode = "DB_CONNECTION_ERROR"
	ErrCodeDBQuery      ErrorCode = "DB_QUERY_ERROR"
	ErrCodeExport       ErrorCode = "EXPORT_ERROR"
)

// ErrorSeverity classifies how badly a failure hurts the session
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError is the application error type carried across package boundaries
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// NewAppErrorWithDetails creates an application error with extra detail text
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

// WithContext attaches a context value to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getSeverityByCode maps error codes to severities
func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeAuth, ErrCodeDatasetSelection, ErrCodeDBConnection:
		return SeverityCritical
	case ErrCodeSimulation, ErrCodeAlphaCheck, ErrCodeCheckpoint, ErrCodeDBQuery:
		return SeverityHigh
	case ErrCodeGeneration, ErrCodeInvalidResponse, ErrCodePlatformAPI, ErrCodeExport:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether the failure is transient: a retryable error
// counts against the per-candidate iteration budget, a non-retryable one
// terminates the session.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeRateLimit, ErrCodeSimulation, ErrCodeAlphaCheck,
		ErrCodeGeneration, ErrCodeInvalidResponse, ErrCodePlatformAPI:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the failure must halt the mining session
func IsFatal(err error) bool {
	appErr := GetAppError(err)
	if appErr == nil {
		return false
	}
	return !appErr.IsRetryable()
}

// WrapError wraps a plain error into an AppError, passing AppErrors through
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewAppError(code, message, err)
}

// IsAppError checks whether err is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts the AppError from err, or nil
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}

package errors

import (
	"fmt"
	"testing"
)

func TestNewAppError(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "Test error", nil)

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	if err.Message != "Test error" {
		t.Errorf("Expected message 'Test error', got %s", err.Message)
	}

	if err.Severity != SeverityLow {
		t.Errorf("Expected severity %s, got %s", SeverityLow, err.Severity)
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewAppError(ErrCodeInternal, "Test error", nil)
	err = err.WithContext("dataset_id", "fundamental6")
	err = err.WithContext("attempt", 3)

	if err.Context["dataset_id"] != "fundamental6" {
		t.Errorf("Expected context dataset_id 'fundamental6', got %v", err.Context["dataset_id"])
	}

	if err.Context["attempt"] != 3 {
		t.Errorf("Expected context attempt 3, got %v", err.Context["attempt"])
	}
}

func TestAppErrorIsRetryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeRateLimit, true},
		{ErrCodeSimulation, true},
		{ErrCodeGeneration, true},
		{ErrCodeInvalidResponse, true},
		{ErrCodeAuth, false},
		{ErrCodeDatasetSelection, false},
		{ErrCodeInvalidInput, false},
	}

	for _, test := range tests {
		err := NewAppError(test.code, "Test", nil)
		if err.IsRetryable() != test.retryable {
			t.Errorf("Code %s: expected retryable=%v, got %v", test.code, test.retryable, err.IsRetryable())
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewAppError(ErrCodeAuth, "bad credentials", nil)) {
		t.Error("Auth errors should be fatal")
	}

	if IsFatal(NewAppError(ErrCodeSimulation, "simulation failed", nil)) {
		t.Error("Simulation errors should not be fatal")
	}

	if IsFatal(fmt.Errorf("plain error")) {
		t.Error("Plain errors should not be classified as fatal")
	}
}

func TestWrapError(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := WrapError(originalErr, ErrCodeDBQuery, "Database error")

	if wrappedErr.Code != ErrCodeDBQuery {
		t.Errorf("Expected code %s, got %s", ErrCodeDBQuery, wrappedErr.Code)
	}

	if wrappedErr.Message != "Database error" {
		t.Errorf("Expected message 'Database error', got %s", wrappedErr.Message)
	}

	if wrappedErr.Cause != originalErr {
		t.Error("Wrapped error should preserve original error")
	}

	// An AppError passes through unchanged
	rewrapped := WrapError(wrappedErr, ErrCodeInternal, "should be ignored")
	if rewrapped != wrappedErr {
		t.Error("Wrapping an AppError should return it unchanged")
	}
}

func TestGetSeverityByCode(t *testing.T) {
	tests := []struct {
		code             ErrorCode
		expectedSeverity ErrorSeverity
	}{
		{ErrCodeInternal, SeverityCritical},
		{ErrCodeAuth, SeverityCritical},
		{ErrCodeDatasetSelection, SeverityCritical},
		{ErrCodeSimulation, SeverityHigh},
		{ErrCodeCheckpoint, SeverityHigh},
		{ErrCodeGeneration, SeverityMedium},
		{ErrCodeInvalidInput, SeverityLow},
	}

	for _, test := range tests {
		severity := getSeverityByCode(test.code)
		if severity != test.expectedSeverity {
			t.Errorf("Code %s: expected severity %s, got %s", test.code, test.expectedSeverity, severity)
		}
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInternal, "Test", nil)
	standardErr := fmt.Errorf("standard error")

	if !IsAppError(appErr) {
		t.Error("Should recognize AppError")
	}

	if IsAppError(standardErr) {
		t.Error("Should not recognize standard error as AppError")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInternal, "Test", nil)
	standardErr := fmt.Errorf("standard error")

	retrieved := GetAppError(appErr)
	if retrieved != appErr {
		t.Error("Should return the same AppError")
	}

	retrieved = GetAppError(standardErr)
	if retrieved != nil {
		t.Error("Should return nil for standard error")
	}
}

package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestOtpConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"expired", OtpExpired(), CodeOtpExpired, http.StatusGone},
		{"mismatch", OtpMismatch(), CodeOtpMismatch, http.StatusUnauthorized},
		{"already consumed", OtpAlreadyConsumed(), CodeOtpAlreadyConsumed, http.StatusConflict},
		{"not verified", OtpNotVerified(), CodeOtpNotVerified, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.HTTPStatus)
			}
		})
	}
}

func TestSlotFull(t *testing.T) {
	err := SlotFull("2024-01-01_0900")

	if err.Code != CodeSlotFull {
		t.Errorf("expected code %s, got %s", CodeSlotFull, err.Code)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
	if err.Details["slot_id"] != "2024-01-01_0900" {
		t.Errorf("expected slot_id detail, got %v", err.Details["slot_id"])
	}
}

func TestUnknownInterval(t *testing.T) {
	err := UnknownInterval("2024-01-01_2330")

	if err.Code != CodeUnknownInterval {
		t.Errorf("expected code %s, got %s", CodeUnknownInterval, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
}

func TestOutOfRange(t *testing.T) {
	err := OutOfRange("2030-01-01")

	if err.Code != CodeOutOfRange {
		t.Errorf("expected code %s, got %s", CodeOutOfRange, err.Code)
	}
	if err.Details["date"] != "2030-01-01" {
		t.Errorf("expected date detail, got %v", err.Details["date"])
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Reservation")
	if got := AsAppError(appErr); got != appErr {
		t.Errorf("AsAppError should return the same AppError")
	}

	plain := errors.New("plain error")
	converted := AsAppError(plain)
	if converted.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, converted.Code)
	}
	if converted.Err != plain {
		t.Errorf("expected original error to be wrapped")
	}
}

func TestHasCode(t *testing.T) {
	if !HasCode(SlotFull("x"), CodeSlotFull) {
		t.Errorf("expected HasCode to match SLOT_FULL")
	}
	if HasCode(SlotFull("x"), CodeOutOfRange) {
		t.Errorf("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should not match plain errors")
	}
}

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	// OTP lifecycle violations.
	CodeOtpExpired         = "OTP_EXPIRED"
	CodeOtpMismatch        = "OTP_MISMATCH"
	CodeOtpAlreadyConsumed = "OTP_ALREADY_CONSUMED"
	CodeOtpNotVerified     = "OTP_NOT_VERIFIED"

	// Slot inventory failures.
	CodeSlotFull        = "SLOT_FULL"
	CodeUnknownInterval = "UNKNOWN_INTERVAL"
	CodeOutOfRange      = "OUT_OF_RANGE"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func OtpExpired() *AppError {
	return &AppError{
		Code:       CodeOtpExpired,
		Message:    "Passcode has expired",
		HTTPStatus: http.StatusGone,
	}
}

func OtpMismatch() *AppError {
	return &AppError{
		Code:       CodeOtpMismatch,
		Message:    "Passcode does not match",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func OtpAlreadyConsumed() *AppError {
	return &AppError{
		Code:       CodeOtpAlreadyConsumed,
		Message:    "Passcode has already been used",
		HTTPStatus: http.StatusConflict,
	}
}

func OtpNotVerified() *AppError {
	return &AppError{
		Code:       CodeOtpNotVerified,
		Message:    "Identity has no verified passcode session",
		HTTPStatus: http.StatusForbidden,
	}
}

func SlotFull(slotID string) *AppError {
	return &AppError{
		Code:       CodeSlotFull,
		Message:    "Slot has no remaining capacity",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

func UnknownInterval(slotID string) *AppError {
	return &AppError{
		Code:       CodeUnknownInterval,
		Message:    "Interval is not part of the published horizon",
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

func OutOfRange(date string) *AppError {
	return &AppError{
		Code:       CodeOutOfRange,
		Message:    "Date falls outside the booking horizon",
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"date": date,
		},
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

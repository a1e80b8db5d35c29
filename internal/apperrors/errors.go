// Package apperrors defines the business error taxonomy for the prediction
// engine. Every expected rejection carries a stable machine code plus a
// human-readable message; anything without a code is an infrastructure
// failure and should be treated as fatal/retryable by callers.
package apperrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	// Validation failures
	CodeInvalidRequest    Code = "invalid_request"
	CodeInvalidReason     Code = "invalid_reason"
	CodeInvalidProofURL   Code = "invalid_proof_url"
	CodeStakeOutOfBounds  Code = "stake_out_of_bounds"
	CodeModeDisabled      Code = "mode_disabled"

	// State conflicts
	CodeStateConflict   Code = "state_conflict"
	CodeAlreadyResolved Code = "already_resolved"
	CodePollNotOpen     Code = "poll_not_open"
	CodeEditLocked      Code = "edit_locked"

	// Eligibility / access
	CodeNotEligible Code = "not_eligible"
	CodeColdAccount Code = "cold_account"
	CodeNotAdmin    Code = "not_admin"

	// Duplicates
	CodeAlreadyParticipating Code = "already_participating"
	CodeAlreadyReported      Code = "already_reported"

	// Resources
	CodeInsufficientBalance Code = "insufficient_balance"
	CodePollNotFound        Code = "poll_not_found"
	CodeUserNotFound        Code = "user_not_found"
)

// Error is a business outcome, not a fault. Reason is only set for
// eligibility rejections and names the first failing check.
type Error struct {
	Code    Code   `json:"error_code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a business error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a business error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotEligible creates an eligibility rejection carrying the blocking reason.
func NotEligible(reason, message string) *Error {
	return &Error{Code: CodeNotEligible, Message: message, Reason: reason}
}

// CodeOf extracts the business code from err, if any.
func CodeOf(err error) (Code, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// IsCode reports whether err is a business error with the given code.
func IsCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// AsError extracts the full business error from err, if any.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

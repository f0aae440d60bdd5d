package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a DomainError for transport-level mapping.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeAlreadyPurchased   ErrorCode = "already_purchased"
	CodeInvalidPromoCode   ErrorCode = "invalid_promo_code"
	CodeClassRepSlotsFull  ErrorCode = "class_rep_slots_full"
	CodeBelowMinimumCharge ErrorCode = "below_minimum_charge"
	CodeLockTimeout        ErrorCode = "lock_timeout"
	CodeInvalidState       ErrorCode = "invalid_state"
)

// DomainError is the error type crossing application-layer boundaries.
// Handlers map its Code to an HTTP status; Message is safe to return to
// callers.
type DomainError struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// Is matches two DomainErrors by code so callers can use errors.Is with a
// bare NewX sentinel.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

func newError(code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg}
}

// NewValidationError reports malformed or unacceptable input.
func NewValidationError(msg string) *DomainError {
	return newError(CodeValidation, msg)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return newError(CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

// NewConflictError reports a concurrent-modification conflict.
func NewConflictError(msg string) *DomainError {
	return newError(CodeConflict, msg)
}

// NewAlreadyPurchasedError reports that the user already holds a completed
// purchase for the program.
func NewAlreadyPurchasedError(programID string) *DomainError {
	return newError(CodeAlreadyPurchased, fmt.Sprintf("program %s already purchased", programID))
}

// NewInvalidPromoCodeError reports an unusable promo code with the reason.
func NewInvalidPromoCodeError(reason string) *DomainError {
	return newError(CodeInvalidPromoCode, reason)
}

// NewClassRepSlotsFullError reports that the program has no class-rep slots
// left.
func NewClassRepSlotsFullError(programID string) *DomainError {
	return newError(CodeClassRepSlotsFull, fmt.Sprintf("no class representative slots remaining for program %s", programID))
}

// NewBelowMinimumChargeError names the computed amount that fell under the
// processor minimum.
func NewBelowMinimumChargeError(amountCents, minimumCents int64) *DomainError {
	return newError(CodeBelowMinimumCharge,
		fmt.Sprintf("computed price %d is below the minimum chargeable amount %d", amountCents, minimumCents))
}

// NewLockTimeoutError reports that a lock could not be acquired in time.
func NewLockTimeoutError(key string) *DomainError {
	return newError(CodeLockTimeout, fmt.Sprintf("timed out waiting for lock %s", key))
}

// NewInvalidStateError reports an illegal state transition.
func NewInvalidStateError(from, to string) *DomainError {
	return newError(CodeInvalidState, fmt.Sprintf("illegal transition from %s to %s", from, to))
}

// Wrap attaches a cause while keeping the code and message.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// CodeOf extracts the error code, or empty string for non-domain errors.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

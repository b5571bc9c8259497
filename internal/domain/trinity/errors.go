package trinity

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a Trinity error by what went wrong, not by type name —
// ported from the error-kind taxonomy in spec §7, generalized from the
// narrower LLMErrorKind enum this package is grounded on.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidationFailure
	KindAuthMissing
	KindAuthRejected
	KindAuthForbidden
	KindPayloadTooLarge
	KindRateLimited
	KindUpstreamUnavailable
	KindBudgetExhausted
	KindDeadlineExceeded
	KindStructuredReasoningMissing
	KindStrictExecutionDowngrade
	KindCommandUndeliverable
	KindProtocolViolation
)

func (k Kind) String() string {
	switch k {
	case KindValidationFailure:
		return "ValidationFailure"
	case KindAuthMissing:
		return "AuthMissing"
	case KindAuthRejected:
		return "AuthRejected"
	case KindAuthForbidden:
		return "AuthForbidden"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindRateLimited:
		return "RateLimited"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindBudgetExhausted:
		return "BudgetExhausted"
	case KindDeadlineExceeded:
		return "DeadlineExceeded"
	case KindStructuredReasoningMissing:
		return "StructuredReasoningMissing"
	case KindStrictExecutionDowngrade:
		return "StrictExecutionDowngrade"
	case KindCommandUndeliverable:
		return "CommandUndeliverable"
	case KindProtocolViolation:
		return "ProtocolViolation"
	default:
		return "Unknown"
	}
}

// Fatal reports whether this kind aborts the request outright (spec §4.6
// failure semantics / §7 propagation policy). Non-fatal kinds are handled by
// warn-and-continue at the call site rather than through this error path.
func (k Kind) Fatal() bool {
	switch k {
	case KindBudgetExhausted, KindDeadlineExceeded, KindStructuredReasoningMissing, KindStrictExecutionDowngrade:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a kind to the status code the HTTP surface returns for it.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidationFailure:
		return http.StatusBadRequest
	case KindAuthMissing:
		return http.StatusUnauthorized
	case KindAuthRejected:
		return http.StatusUnauthorized
	case KindAuthForbidden:
		return http.StatusForbidden
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindCommandUndeliverable:
		return http.StatusServiceUnavailable
	case KindBudgetExhausted, KindDeadlineExceeded, KindStructuredReasoningMissing, KindStrictExecutionDowngrade:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the classified error type returned by Trinity pipeline stages.
// It implements error and Unwrap, mirroring the teacher's LLMError.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// NewError builds a classified error with no underlying cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err (or something it wraps) is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// AsError extracts the classified error, if any, from err.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies gateway failures so entry points can pick an HTTP status
// and callers can decide whether a retry is safe.
type Kind int

const (
	// KindValidation rejects bad input before any outbound call.
	KindValidation Kind = iota
	// KindConfiguration signals missing credentials or configuration.
	KindConfiguration
	// KindAuth signals the provider rejected our credentials.
	KindAuth
	// KindProtocol signals a provider response missing its expected shape.
	KindProtocol
	// KindTransient signals a network failure or timeout. Safe to retry.
	KindTransient
	// KindRejected carries a provider business-rule rejection verbatim.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the gateway boundary. Provider
// messages are preserved in Message for diagnostics but are never surfaced
// as uncaught faults.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Provider string
	cause    error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind onto the response status used by handlers.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusBadGateway
	case KindProtocol:
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErr rejects input before it reaches an adapter.
func ValidationErr(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// ConfigErr reports missing credentials or configuration.
func ConfigErr(provider, message string) *Error {
	return &Error{Kind: KindConfiguration, Code: "missing_configuration", Message: message, Provider: provider}
}

// AuthErr reports a credential rejection by the provider.
func AuthErr(provider, message string) *Error {
	return &Error{Kind: KindAuth, Code: "auth_failed", Message: message, Provider: provider}
}

// ProtocolErr reports a provider response missing an expected field.
func ProtocolErr(provider, message string) *Error {
	return &Error{Kind: KindProtocol, Code: "unexpected_response", Message: message, Provider: provider}
}

// TransientErr wraps a network or timeout failure.
func TransientErr(provider string, cause error) *Error {
	msg := "gateway unreachable"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindTransient, Code: "gateway_unreachable", Message: msg, Provider: provider, cause: cause}
}

// RejectedErr passes a provider business rejection through verbatim.
func RejectedErr(provider, message string) *Error {
	return &Error{Kind: KindRejected, Code: "provider_rejected", Message: message, Provider: provider}
}

// KindOf extracts the Kind from any error in the chain, defaulting to
// KindTransient so unknown failures stay retryable rather than final.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindTransient
}

// CodeOf returns the short machine code for an error, or "internal_error".
func CodeOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "internal_error"
}

// HTTPStatusOf resolves the response status for any error.
func HTTPStatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.HTTPStatus()
	}
	return http.StatusInternalServerError
}

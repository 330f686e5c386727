package errors

import (
	"errors"
	"fmt"
)

// Error kinds raised by the HubSpot authorization flow and record fetch.
var (
	// Callback errors
	ErrProviderDenied    = errors.New("provider denied authorization")
	ErrMalformedCallback = errors.New("malformed callback")
	ErrStateNotFound     = errors.New("state not found")
	ErrStateMismatch     = errors.New("state mismatch")

	// Token exchange errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrProviderUnreachable = errors.New("provider unreachable")

	// Credential errors
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidCredential = errors.New("invalid credential")

	// Record fetch errors
	ErrRemoteUnavailable   = errors.New("remote unavailable")
	ErrPartialFetchFailure = errors.New("partial fetch failure")

	// General errors
	ErrMalformedRequest = errors.New("malformed request")
	ErrInternal         = errors.New("internal error")
)

var kindNames = map[error]string{
	ErrProviderDenied:      "provider_denied",
	ErrMalformedCallback:   "malformed_callback",
	ErrStateNotFound:       "state_not_found",
	ErrStateMismatch:       "state_mismatch",
	ErrTokenExchangeFailed: "token_exchange_failed",
	ErrProviderUnreachable: "provider_unreachable",
	ErrNotAuthorized:       "not_authorized",
	ErrInvalidCredential:   "invalid_credential",
	ErrRemoteUnavailable:   "remote_unavailable",
	ErrPartialFetchFailure: "partial_fetch_failure",
	ErrMalformedRequest:    "malformed_request",
	ErrInternal:            "internal_error",
}

// FlowError is a tagged error carrying the kind plus the context it happened in.
// Detail is safe to return to callers; it never holds secrets or tokens.
type FlowError struct {
	Kind       error
	TenantID   string
	UserID     string
	StatusCode int // upstream HTTP status, 0 when not applicable
	Detail     string
	Err        error
}

// New builds a FlowError of the given kind.
func New(kind error, detail string) *FlowError {
	return &FlowError{Kind: kind, Detail: detail}
}

// WithSubject records the tenant and user the error relates to.
func (e *FlowError) WithSubject(tenantID, userID string) *FlowError {
	e.TenantID = tenantID
	e.UserID = userID
	return e
}

// WithStatus records the upstream HTTP status code.
func (e *FlowError) WithStatus(code int) *FlowError {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Err = err
	return e
}

func (e *FlowError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Is matches the error kind so callers can use errors.Is(err, ErrStateMismatch).
func (e *FlowError) Is(target error) bool {
	return e.Kind == target
}

// KindOf returns the kind of a FlowError in err's chain, or ErrInternal.
func KindOf(err error) error {
	var fe *FlowError
	if errors.As(err, &fe) && fe.Kind != nil {
		return fe.Kind
	}
	return ErrInternal
}

// KindName returns the snake_case name of the error's kind, used in responses and logs.
func KindName(err error) string {
	if name, ok := kindNames[KindOf(err)]; ok {
		return name
	}
	return kindNames[ErrInternal]
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

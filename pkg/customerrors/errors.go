// Package customerrors holds the error taxonomy shared by every layer.
// Each sentinel is bound to a Kind, and the HTTP layer maps kinds to status codes.
package customerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindPersistence Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindUpstream
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "persistence"
	}
}

// Error is a sentinel with a fixed kind. Compare with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

var (
	// validation
	ErrDuplicateEmail     = New(KindValidation, "User already exists")
	ErrInvalidEmailFormat = New(KindValidation, "Invalid email")
	ErrSecretTooShort     = New(KindValidation, "Password must be at least 6 characters")
	ErrSecretTooLong      = New(KindValidation, "Password must be at most 72 bytes")
	ErrInvalidCredentials = New(KindValidation, "Invalid login credentials")
	ErrInvalidIPFormat    = New(KindValidation, "Invalid IP address format")
	ErrMissingFields      = New(KindValidation, "IP and geoData are required")
	ErrEmptyIDs           = New(KindValidation, "Please provide an array of history item IDs to delete")
	ErrInvalidBody        = New(KindValidation, "Invalid request body")

	// authentication
	ErrUnauthenticated = New(KindAuthentication, "No authentication token provided")
	ErrMalformedToken  = New(KindAuthentication, "Invalid or expired token")
	ErrUserNotFound    = New(KindAuthentication, "User not found")
	ErrSessionRevoked  = New(KindAuthentication, "Session expired")

	// not found
	ErrNotFound    = New(KindNotFound, "History item not found")
	ErrNoneMatched = New(KindNotFound, "No matching history items found to delete")

	// upstream
	ErrProvider = New(KindUpstream, "Error looking up IP address")

	// rate limiting
	ErrTooManyRequests = New(KindRateLimited, "Rate limit exceeded. Please try again later.")

	// persistence
	ErrNoTagsAffected = New(KindPersistence, "no rows affected")
)

// KindOf returns the kind of the first *Error in err's chain.
// Errors outside the taxonomy are treated as persistence failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindPersistence
}

// Upstream wraps a provider failure so it classifies as KindUpstream
// while keeping the provider's reason in the chain.
func Upstream(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProvider, fmt.Sprintf(format, args...))
}

// Public returns the message safe to show to a client.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return "Internal Server Error"
}

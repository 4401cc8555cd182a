package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed remote call. Repositories treat every kind the same
// way (fall back to the local store); the kind exists for diagnostics and for
// the identity flows that surface errors to the user.
type Kind int

const (
	// KindUnreachable covers transport failures, timeouts, and 5xx responses.
	KindUnreachable Kind = iota + 1
	// KindRejected is a 4xx response: the API understood and refused.
	KindRejected
	// KindMalformed is a 2xx response whose body could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every [Client] call that fails.
type Error struct {
	// Op names the call, e.g. "GET /api/citas".
	Op   string
	Kind Kind
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	// Message is the server-provided explanation, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the [Kind] of err, or 0 if err is not a remote error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return 0
}

// IsUnreachable reports whether err means the API could not be reached.
func IsUnreachable(err error) bool { return KindOf(err) == KindUnreachable }

// IsRejected reports whether err is a 4xx refusal.
func IsRejected(err error) bool { return KindOf(err) == KindRejected }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// MessageOf returns the server-provided message carried by err, or "".
func MessageOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}

func kindForStatus(status int) Kind {
	if status >= http.StatusInternalServerError {
		return KindUnreachable
	}
	return KindRejected
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == KindUnreachable
}

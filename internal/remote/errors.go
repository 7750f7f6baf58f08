package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed remote call.
type ErrorKind string

const (
	// Unauthorized: the session is missing, expired or not allowed (401, 403).
	Unauthorized ErrorKind = "unauthorized"
	// NotFound: the entity no longer exists (404).
	NotFound ErrorKind = "not_found"
	// Invalid: the server rejected the payload (400, 422).
	Invalid ErrorKind = "invalid"
	// Conflict: a uniqueness rule was violated (409).
	Conflict ErrorKind = "conflict"
	// ServerError: 5xx or any other unexpected status.
	ServerError ErrorKind = "server_error"
	// NetworkError: the request could not be sent or the response not read.
	NetworkError ErrorKind = "network_error"
)

// Error is returned by every Client method on failure.
type Error struct {
	Kind   ErrorKind
	Status int    // HTTP status, 0 for network errors
	Op     string // e.g. "list tasks"
	Detail string // server-provided message, if any
	Err    error  // underlying transport error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindFromStatus maps an HTTP status code onto an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthorized
	case http.StatusNotFound:
		return NotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Invalid
	case http.StatusConflict:
		return Conflict
	}
	return ServerError
}

// KindOf returns the ErrorKind of err, or "" if err is not a *Error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound remote error.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsUnauthorized reports whether err means the user must sign in again.
func IsUnauthorized(err error) bool { return KindOf(err) == Unauthorized }

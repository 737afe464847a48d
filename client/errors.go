package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the server did not accept the session.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrForbidden means the server refused the action for the current grants.
	ErrForbidden = errors.New("client: forbidden")
	// ErrNotFound means the addressed resource does not exist.
	ErrNotFound = errors.New("client: not found")
	// ErrInvalid means the server rejected the payload.
	ErrInvalid = errors.New("client: invalid data")
	// ErrNotLoggedIn is returned by Session calls made after Logout.
	ErrNotLoggedIn = errors.New("client: not logged in")
)

// APIError carries a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: server returned %d", e.Status)
	}
	return fmt.Sprintf("client: server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the package sentinels. A 403 is never reported as not found.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		return ErrInvalid
	}
	return nil
}

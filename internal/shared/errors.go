package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a bearer token that is malformed, expired or revoked.
	ErrInvalidToken = errors.New("invalid token")
)

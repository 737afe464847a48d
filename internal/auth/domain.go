package auth

import (
	"time"

	"github.com/maintrack/maintrack/internal/users"
)

// Credentials is the login view of a user account.
type Credentials struct {
	ID           int64
	Email        string
	PasswordHash string
}

// LoginInput is the login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClientMeta describes the caller of a login for the session record.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Profile is the user together with its flattened permission mapping.
type Profile struct {
	User        users.User      `json:"user"`
	Permissions map[string]bool `json:"permissions"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token       string          `json:"token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        users.User      `json:"user"`
	Permissions map[string]bool `json:"permissions"`
}

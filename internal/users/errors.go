package users

import (
	"errors"
	"fmt"

	"github.com/maintrack/maintrack/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested user does not exist.
	ErrNotFound = fmt.Errorf("users: user %w", httpx.ErrNotFound)
	// ErrSectionNotFound indicates that the requested section does not exist.
	ErrSectionNotFound = fmt.Errorf("users: section %w", httpx.ErrNotFound)
	// ErrDuplicateEmail indicates another user already uses the email.
	ErrDuplicateEmail = errors.New("users: duplicate email")
	// ErrDuplicateSection indicates another section already uses the name.
	ErrDuplicateSection = errors.New("users: duplicate section name")
	// ErrUnknownRole indicates a role id outside the roles table.
	ErrUnknownRole = errors.New("users: unknown role")
	// ErrUnknownSection indicates a section id outside the sections table.
	ErrUnknownSection = errors.New("users: unknown section")
	// ErrUnknownUser indicates a referenced user id does not exist.
	ErrUnknownUser = errors.New("users: unknown user")
)

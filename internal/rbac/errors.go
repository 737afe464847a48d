package rbac

import (
	"errors"
	"fmt"

	"github.com/maintrack/maintrack/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested role or permission does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrUserNotFound is returned by the authorization check when the identity no longer resolves.
	ErrUserNotFound = errors.New("rbac: user not found")
	// ErrDuplicateName indicates another role already uses the name.
	ErrDuplicateName = errors.New("rbac: duplicate role name")
	// ErrUnknownPermission indicates a grant references an id outside the catalog.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
	// ErrRoleInUse indicates a guarded deletion of a role that users still hold.
	ErrRoleInUse = httpx.NewPublicError("Role is assigned to users", httpx.ErrConflict)
)

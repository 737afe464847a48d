package rbac

import "time"

// Permission is one (module, action) pair of the catalog.
type Permission struct {
	ID          int64  `json:"id"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// Token returns the module-action string used by route declarations.
func (p Permission) Token() string {
	return Token(p.Module, p.Action)
}

// Token joins a module and an action into a permission token.
func Token(module, action string) string {
	return module + "-" + action
}

// PermissionSpec describes a catalog entry before it has an identity.
type PermissionSpec struct {
	Module      string
	Action      string
	Description string
}

// Role is a named bundle of grants.
type Role struct {
	ID          int64        `json:"id"`
	Nom         string       `json:"nom"`
	Cout        float64      `json:"cout"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RoleInput is the administrative payload for creating or updating a role.
// A nil Permissions leaves the grant set untouched on update.
type RoleInput struct {
	Nom         string  `json:"nom" validate:"required,max=255"`
	Cout        float64 `json:"cout" validate:"gte=0"`
	Permissions []int64 `json:"permissions" validate:"omitempty,dive,gt=0"`
}

// GrantsInput is the payload of a grant-set replace.
type GrantsInput struct {
	Permissions []int64 `json:"permissions" validate:"dive,gt=0"`
}

// DeleteOptions tunes role deletion.
type DeleteOptions struct {
	// RequireUnused rejects deletion of a role still held by a user.
	RequireUnused bool
}

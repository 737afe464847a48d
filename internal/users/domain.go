package users

import "time"

// RoleRef is the summary of a role held by a user.
type RoleRef struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

// User represents a user account. The password hash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Nom          string    `json:"nom"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	SectionID    *int64    `json:"section_id"`
	Roles        []RoleRef `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleIDs returns the ids of the held roles.
func (u User) RoleIDs() []int64 {
	ids := make([]int64, len(u.Roles))
	for i, r := range u.Roles {
		ids[i] = r.ID
	}
	return ids
}

// Section is an organisational grouping. Its responsable carries no permission.
type Section struct {
	ID            int64     `json:"id"`
	Nom           string    `json:"nom"`
	ResponsableID *int64    `json:"responsable_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateUserInput is the administrative payload for a new user.
type CreateUserInput struct {
	Nom       string  `json:"nom" validate:"required,max=255"`
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	SectionID *int64  `json:"section_id" validate:"omitempty,gt=0"`
	Roles     []int64 `json:"roles" validate:"omitempty,dive,gt=0"`
}

// UpdateUserInput is the administrative payload for an existing user.
// An empty Password keeps the current one and a nil Roles keeps the held roles.
type UpdateUserInput struct {
	Nom       string  `json:"nom" validate:"required,max=255"`
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"omitempty,min=8,max=72"`
	SectionID *int64  `json:"section_id" validate:"omitempty,gt=0"`
	Roles     []int64 `json:"roles" validate:"omitempty,dive,gt=0"`
}

// SectionInput creates a section.
type SectionInput struct {
	Nom string `json:"nom" validate:"required,max=255"`
}

// ResponsableInput designates, or clears with a nil UserID, a section's responsable.
type ResponsableInput struct {
	UserID *int64 `json:"user_id" validate:"omitempty,gt=0"`
}

package users

import "context"

// Repository defines data access methods for users and sections.
type Repository interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListSections(ctx context.Context) ([]Section, error)
	GetSection(ctx context.Context, id int64) (Section, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes that must commit together.
type TxRepository interface {
	CreateUser(ctx context.Context, u User) (int64, error)
	UpdateUser(ctx context.Context, u User, withPassword bool) error
	DeleteUser(ctx context.Context, id int64) error
	UserExists(ctx context.Context, id int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error)
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	CreateSection(ctx context.Context, nom string) (int64, error)
	SectionExists(ctx context.Context, id int64) (bool, error)
	SectionNomTaken(ctx context.Context, nom string) (bool, error)
	SetSectionResponsable(ctx context.Context, sectionID int64, userID *int64) error
}

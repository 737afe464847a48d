package rbac

import "context"

// Repository defines the persistence operations of the authorization model.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error)
	UpsertPermission(ctx context.Context, spec PermissionSpec) (Permission, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByNom(ctx context.Context, nom string) (Role, error)

	// UserGrants returns every permission reachable from the user's roles in a
	// single read. It returns ErrUserNotFound when the user row is absent.
	UserGrants(ctx context.Context, userID int64) ([]Permission, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes that must commit together.
type TxRepository interface {
	CreateRole(ctx context.Context, nom string, cout float64) (int64, error)
	UpdateRole(ctx context.Context, id int64, nom string, cout float64) error
	DeleteRole(ctx context.Context, id int64) error
	RoleExists(ctx context.Context, id int64) (bool, error)
	RoleNomTaken(ctx context.Context, nom string, excludeID int64) (bool, error)
	CountRoleHolders(ctx context.Context, id int64) (int, error)

	MissingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error)
	AllPermissionIDs(ctx context.Context) ([]int64, error)
	ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error
}

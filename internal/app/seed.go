package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/users"
)

// SeedOptions controls the bootstrap of an empty database.
type SeedOptions struct {
	AdminRole     string
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// SeedResult reports what Seed provisioned.
type SeedResult struct {
	Permissions int
	Role        rbac.Role
	AdminUserID int64
}

// Seed provisions the builtin catalog, grants all of it to the admin role and
// optionally creates an admin account. Running it again re-syncs the role.
func Seed(ctx context.Context, svc *Services, opts SeedOptions, logger *slog.Logger) (SeedResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	perms, err := svc.Catalog.Ensure(ctx, rbac.BuiltinPermissions)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	if _, err := svc.Roles.EnsureRole(ctx, opts.AdminRole, 0); err != nil {
		return SeedResult{}, fmt.Errorf("seed admin role: %w", err)
	}
	role, err := svc.Roles.SyncRoleWithCatalog(ctx, opts.AdminRole)
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed admin grants: %w", err)
	}
	res := SeedResult{Permissions: len(perms), Role: role}

	if strings.TrimSpace(opts.AdminEmail) == "" {
		return res, nil
	}
	name := opts.AdminName
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	u, err := svc.Users.CreateUser(ctx, users.CreateUserInput{
		Nom:      name,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
		Roles:    []int64{role.ID},
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			logger.Info("admin account already present", slog.String("email", opts.AdminEmail))
			return res, nil
		}
		return res, fmt.Errorf("seed admin account: %w", err)
	}
	res.AdminUserID = u.ID
	return res, nil
}

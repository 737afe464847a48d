package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Permission tokens guarding the administrative surface.
const (
	PermAdminUsers       = "admin-users"
	PermAdminRoles       = "admin-roles"
	PermAdminPermissions = "admin-permissions"
	PermSectionList      = "section-list"
	PermSectionManage    = "section-manage"
)

// BuiltinPermissions is the catalog provisioned by the seed step.
var BuiltinPermissions = []PermissionSpec{
	{Module: "machine", Action: "list", Description: "List electrical machines"},
	{Module: "machine", Action: "view", Description: "View a machine record"},
	{Module: "machine", Action: "create", Description: "Register a machine"},
	{Module: "machine", Action: "update", Description: "Edit a machine record"},
	{Module: "machine", Action: "delete", Description: "Remove a machine"},

	{Module: "maintenance", Action: "list", Description: "List maintenance interventions"},
	{Module: "maintenance", Action: "create", Description: "Record a maintenance intervention"},
	{Module: "maintenance", Action: "update", Description: "Edit a maintenance intervention"},
	{Module: "maintenance", Action: "delete", Description: "Remove a maintenance intervention"},

	{Module: "renovation", Action: "list", Description: "List renovations"},
	{Module: "renovation", Action: "create", Description: "Record a renovation"},
	{Module: "renovation", Action: "update", Description: "Edit a renovation"},
	{Module: "renovation", Action: "delete", Description: "Remove a renovation"},

	{Module: "diagnostic", Action: "list", Description: "List diagnostics"},
	{Module: "diagnostic", Action: "create", Description: "Create a diagnostic with its checklists"},
	{Module: "diagnostic", Action: "update", Description: "Edit a diagnostic"},
	{Module: "diagnostic", Action: "delete", Description: "Remove a diagnostic"},

	{Module: "quality", Action: "list", Description: "List quality-control records"},
	{Module: "quality", Action: "create", Description: "Record a quality-control check"},
	{Module: "quality", Action: "update", Description: "Edit a quality-control check"},

	{Module: "report", Action: "list", Description: "List reports"},
	{Module: "report", Action: "create", Description: "Write a report"},
	{Module: "report", Action: "export", Description: "Export reports"},

	{Module: "schedule", Action: "list", Description: "View the intervention schedule"},
	{Module: "schedule", Action: "manage", Description: "Plan interventions"},

	{Module: "section", Action: "list", Description: "List sections"},
	{Module: "section", Action: "manage", Description: "Assign section managers"},

	{Module: "admin", Action: "users", Description: "Administer users"},
	{Module: "admin", Action: "roles", Description: "Administer roles and grant sets"},
	{Module: "admin", Action: "permissions", Description: "Browse the permission catalog"},
}

// Catalog exposes the closed set of permissions the system understands.
type Catalog struct {
	repo Repository
}

// NewCatalog constructs a Catalog.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// ListAll returns every permission ordered by module, action then id.
func (c *Catalog) ListAll(ctx context.Context) ([]Permission, error) {
	perms, err := c.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// ListByModule returns the permissions of one module. Unknown modules yield an empty slice.
func (c *Catalog) ListByModule(ctx context.Context, module string) ([]Permission, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return []Permission{}, nil
	}
	perms, err := c.repo.ListPermissionsByModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions of %s: %w", module, err)
	}
	if perms == nil {
		perms = []Permission{}
	}
	return perms, nil
}

// Ensure upserts catalog entries by (module, action). Only descriptions are updated.
func (c *Catalog) Ensure(ctx context.Context, specs []PermissionSpec) ([]Permission, error) {
	out := make([]Permission, 0, len(specs))
	for _, spec := range specs {
		spec.Module = strings.TrimSpace(spec.Module)
		spec.Action = strings.TrimSpace(spec.Action)
		spec.Description = strings.TrimSpace(spec.Description)
		if err := validateSpec(spec); err != nil {
			return nil, err
		}
		perm, err := c.repo.UpsertPermission(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("rbac: ensure %s: %w", Token(spec.Module, spec.Action), err)
		}
		out = append(out, perm)
	}
	return out, nil
}

func validateSpec(spec PermissionSpec) error {
	if spec.Module == "" || spec.Action == "" {
		return errors.New("rbac: permission module and action are required")
	}
	if strings.ContainsAny(spec.Module, " \t\n") || strings.ContainsAny(spec.Action, " \t\n") {
		return fmt.Errorf("rbac: permission %q contains whitespace", Token(spec.Module, spec.Action))
	}
	return nil
}

package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/maintrack/maintrack/internal/platform/db/dbtest"
	"github.com/maintrack/maintrack/internal/rbac"
)

func TestPGRepositoryUsersAndSections(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()

	rbacRepo := rbac.NewPGRepository(pool)
	perms, err := rbac.NewCatalog(rbacRepo).Ensure(ctx, []rbac.PermissionSpec{{Module: "machine", Action: "list"}, {Module: "section", Action: "manage"}})
	require.NoError(t, err)
	viewer, err := rbac.NewService(rbacRepo, nil, nil).CreateRole(ctx, rbac.RoleInput{Nom: "Viewer", Permissions: []int64{perms[0].ID}})
	require.NoError(t, err)

	svc := NewService(NewPGRepository(pool), nil, nil)
	svc.hashCost = bcrypt.MinCost

	sec, err := svc.CreateSection(ctx, SectionInput{Nom: "Bobinage"})
	require.NoError(t, err)
	u, err := svc.CreateUser(ctx, CreateUserInput{Nom: "Alice", Email: "alice@example.com", Password: "password1", SectionID: &sec.ID, Roles: []int64{viewer.ID}})
	require.NoError(t, err)
	assert.Equal(t, []RoleRef{{ID: viewer.ID, Nom: "Viewer"}}, u.Roles)
	require.NotNil(t, u.SectionID)

	_, err = svc.CreateUser(ctx, CreateUserInput{Nom: "Alice 2", Email: "ALICE@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.SetSectionResponsable(ctx, sec.ID, &u.ID)
	require.NoError(t, err)

	// Being responsable of a section grants nothing.
	authz := rbac.NewAuthorizer(rbacRepo, nil)
	ok, err := authz.Authorize(ctx, u.ID, "section-manage")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = authz.Authorize(ctx, u.ID, "machine-list")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	_, err = authz.Authorize(ctx, u.ID, "machine-list")
	assert.ErrorIs(t, err, rbac.ErrUserNotFound)

	sections, err := svc.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Nil(t, sections[0].ResponsableID)
}

package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authzFixture struct {
	repo  *mockRepository
	svc   *Service
	authz *Authorizer
	obs   *recordingObserver
	perms map[string]int64
}

func newAuthzFixture(t *testing.T, tokens ...[2]string) *authzFixture {
	t.Helper()
	repo := newMockRepository()
	obs := &recordingObserver{}
	f := &authzFixture{
		repo:  repo,
		svc:   NewService(repo, nil, nil),
		authz: NewAuthorizer(repo, obs),
		obs:   obs,
		perms: make(map[string]int64),
	}
	for _, tok := range tokens {
		f.perms[Token(tok[0], tok[1])] = repo.addPermission(tok[0], tok[1])
	}
	return f
}

func (f *authzFixture) ids(t *testing.T, tokens ...string) []int64 {
	t.Helper()
	out := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		id, ok := f.perms[tok]
		require.True(t, ok, "unknown fixture token %s", tok)
		out = append(out, id)
	}
	return out
}

func (f *authzFixture) role(t *testing.T, nom string, tokens ...string) Role {
	t.Helper()
	role, err := f.svc.CreateRole(context.Background(), RoleInput{Nom: nom, Permissions: f.ids(t, tokens...)})
	require.NoError(t, err)
	return role
}

func (f *authzFixture) effective(t *testing.T, userID int64) []string {
	t.Helper()
	set, err := f.authz.EffectivePermissions(context.Background(), userID)
	require.NoError(t, err)
	return set.Tokens()
}

var machineTokens = [][2]string{
	{"machine", "list"},
	{"machine", "view"},
	{"machine", "delete"},
	{"diagnostic", "create"},
}

func TestUserWithoutRolesIsDeniedEverything(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1)

	for tok := range f.perms {
		ok, err := f.authz.Authorize(context.Background(), 1, tok)
		require.NoError(t, err)
		assert.False(t, ok, tok)
	}
	assert.Empty(t, f.effective(t, 1))
}

func TestSetGrantsIsExactReplace(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list", "machine-view")
	f.repo.addUser(1, role.ID)

	_, err := f.svc.SetGrants(context.Background(), role.ID, f.ids(t, "machine-delete", "diagnostic-create"))
	require.NoError(t, err)

	assert.Equal(t, []string{"diagnostic-create", "machine-delete"}, f.effective(t, 1))
}

func TestSetGrantsIsIdempotent(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer")
	f.repo.addUser(1, role.ID)
	grants := f.ids(t, "machine-list", "machine-view")

	_, err := f.svc.SetGrants(context.Background(), role.ID, grants)
	require.NoError(t, err)
	once := f.effective(t, 1)

	_, err = f.svc.SetGrants(context.Background(), role.ID, grants)
	require.NoError(t, err)

	assert.Equal(t, once, f.effective(t, 1))
	assert.Equal(t, 2, f.repo.grantCount(role.ID))
}

func TestSetGrantsUnknownPermissionKeepsGrants(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1, role.ID)

	_, err := f.svc.SetGrants(context.Background(), role.ID, []int64{f.perms["machine-view"], 999})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	assert.Equal(t, []string{"machine-list"}, f.effective(t, 1))
}

func TestEffectivePermissionsIsUnionOfRoles(t *testing.T) {
	f := newAuthzFixture(t, [2]string{"a", "x"}, [2]string{"b", "x"}, [2]string{"c", "x"})
	r1 := f.role(t, "R1", "a-x", "b-x")
	r2 := f.role(t, "R2", "b-x", "c-x")
	f.repo.addUser(1, r1.ID, r2.ID)

	assert.Equal(t, []string{"a-x", "b-x", "c-x"}, f.effective(t, 1))
}

func TestDeletingSoleRoleRevokes(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list", "machine-view")
	f.repo.addUser(1, role.ID)

	ok, err := f.authz.Authorize(context.Background(), 1, "machine-list")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.svc.DeleteRole(context.Background(), role.ID, DeleteOptions{}))

	for _, tok := range []string{"machine-list", "machine-view"} {
		ok, err := f.authz.Authorize(context.Background(), 1, tok)
		require.NoError(t, err)
		assert.False(t, ok, tok)
	}
}

func TestViewerScenario(t *testing.T) {
	f := newAuthzFixture(t, [2]string{"machine", "list"})
	viewer := f.role(t, "Viewer", "machine-list")
	const alice = int64(10)
	f.repo.addUser(alice, viewer.ID)

	ok, err := f.authz.Authorize(context.Background(), alice, "machine-list")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.authz.Authorize(context.Background(), alice, "machine-delete")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdminGrantsAreASnapshotUntilResync(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	admin, err := f.svc.EnsureRole(context.Background(), "Admin", 0)
	require.NoError(t, err)
	_, err = f.svc.SyncRoleWithCatalog(context.Background(), "Admin")
	require.NoError(t, err)
	f.repo.addUser(1, admin.ID)

	for tok := range f.perms {
		ok, err := f.authz.Authorize(context.Background(), 1, tok)
		require.NoError(t, err)
		assert.True(t, ok, tok)
	}

	f.repo.addPermission("quality", "create")
	ok, err := f.authz.Authorize(context.Background(), 1, "quality-create")
	require.NoError(t, err)
	assert.False(t, ok, "permissions added after the sync are not granted")

	_, err = f.svc.SyncRoleWithCatalog(context.Background(), "Admin")
	require.NoError(t, err)
	ok, err = f.authz.Authorize(context.Background(), 1, "quality-create")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleNamedAdminHasNoBypass(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	admin := f.role(t, "Admin")
	f.repo.addUser(1, admin.ID)

	ok, err := f.authz.Authorize(context.Background(), 1, "machine-list")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeUnknownUser(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)

	_, err := f.authz.Authorize(context.Background(), 77, "machine-list")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.authz.Authorize(context.Background(), 0, "machine-list")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthorizeTokenMatchIsExact(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1, role.ID)

	cases := map[string]bool{
		"machine-list":   true,
		" machine-list ": true,
		"Machine-List":   false,
		"machine":        false,
		"machine-":       false,
		"":               false,
	}
	for tok, want := range cases {
		ok, err := f.authz.Authorize(context.Background(), 1, tok)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "%q", tok)
	}
}

func TestAuthorizeAllAndAny(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list", "machine-view")
	f.repo.addUser(1, role.ID)
	ctx := context.Background()

	ok, err := f.authz.AuthorizeAll(ctx, 1, "machine-list", "machine-view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.authz.AuthorizeAll(ctx, 1, "machine-list", "machine-delete")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.authz.AuthorizeAny(ctx, 1, "machine-delete", "machine-view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.authz.AuthorizeAny(ctx, 1, "machine-delete", "diagnostic-create")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeEmptyTokenListIsDenied(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	f.repo.addUser(42)
	role := f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1, role.ID)
	ctx := context.Background()

	for _, userID := range []int64{42, 1} {
		ok, err := f.authz.AuthorizeAll(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok, "all, user %d", userID)

		ok, err = f.authz.AuthorizeAll(ctx, userID, " ", "")
		require.NoError(t, err)
		assert.False(t, ok, "all blank, user %d", userID)

		ok, err = f.authz.AuthorizeAny(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok, "any, user %d", userID)

		ok, err = f.authz.AuthorizeAny(ctx, userID, " ")
		require.NoError(t, err)
		assert.False(t, ok, "any blank, user %d", userID)
	}
}

func TestAuthorizeReadsLiveState(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1, role.ID)

	_, err := f.authz.Authorize(context.Background(), 1, "machine-list")
	require.NoError(t, err)
	_, err = f.svc.SetGrants(context.Background(), role.ID, nil)
	require.NoError(t, err)

	ok, err := f.authz.Authorize(context.Background(), 1, "machine-list")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, f.repo.userGrantCalls)
}

func TestAuthorizeStoreError(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	f.repo.userGrantsErr = errors.New("pool exhausted")

	ok, err := f.authz.Authorize(context.Background(), 1, "machine-list")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAuthorizeReportsDecisions(t *testing.T) {
	f := newAuthzFixture(t, machineTokens...)
	role := f.role(t, "Viewer", "machine-list")
	f.repo.addUser(1, role.ID)

	_, _ = f.authz.Authorize(context.Background(), 1, "machine-list")
	_, _ = f.authz.Authorize(context.Background(), 1, "machine-delete")

	assert.Equal(t, []decision{
		{token: "machine-list", allowed: true},
		{token: "machine-delete", allowed: false},
	}, f.obs.decisions)
}

package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maintrack/maintrack/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRole struct {
	role   Role
	grants map[int64]struct{}
}

type mockState struct {
	perms      map[int64]Permission
	roles      map[int64]*mockRole
	userRoles  map[int64]map[int64]struct{}
	nextPermID int64
	nextRoleID int64
}

func (s *mockState) clone() *mockState {
	out := &mockState{
		perms:      make(map[int64]Permission, len(s.perms)),
		roles:      make(map[int64]*mockRole, len(s.roles)),
		userRoles:  make(map[int64]map[int64]struct{}, len(s.userRoles)),
		nextPermID: s.nextPermID,
		nextRoleID: s.nextRoleID,
	}
	for id, p := range s.perms {
		out.perms[id] = p
	}
	for id, r := range s.roles {
		grants := make(map[int64]struct{}, len(r.grants))
		for g := range r.grants {
			grants[g] = struct{}{}
		}
		out.roles[id] = &mockRole{role: r.role, grants: grants}
	}
	for uid, roles := range s.userRoles {
		held := make(map[int64]struct{}, len(roles))
		for rid := range roles {
			held[rid] = struct{}{}
		}
		out.userRoles[uid] = held
	}
	return out
}

type mockRepository struct {
	mu    sync.Mutex
	state *mockState

	// Error injection
	txError        error
	replaceError   error
	userGrantsErr  error
	userGrantCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{state: &mockState{
		perms:      make(map[int64]Permission),
		roles:      make(map[int64]*mockRole),
		userRoles:  make(map[int64]map[int64]struct{}),
		nextPermID: 1,
		nextRoleID: 1,
	}}
}

// addPermission seeds a catalog entry and returns its id.
func (m *mockRepository) addPermission(module, action string) int64 {
	p, _ := m.UpsertPermission(context.Background(), PermissionSpec{Module: module, Action: action})
	return p.ID
}

// addUser registers a user holding the given roles.
func (m *mockRepository) addUser(userID int64, roleIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := make(map[int64]struct{}, len(roleIDs))
	for _, rid := range roleIDs {
		held[rid] = struct{}{}
	}
	m.state.userRoles[userID] = held
}

func (m *mockRepository) removeUser(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.userRoles, userID)
}

func (m *mockRepository) grantCount(roleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.roles[roleID]
	if !ok {
		return -1
	}
	return len(r.grants)
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedPermissions(m.state.perms, nil), nil
}

func (m *mockRepository) ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Permission
	for _, p := range sortedPermissions(m.state.perms, nil) {
		if p.Module == module {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) UpsertPermission(ctx context.Context, spec PermissionSpec) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.state.perms {
		if p.Module == spec.Module && p.Action == spec.Action {
			p.Description = spec.Description
			m.state.perms[id] = p
			return p, nil
		}
	}
	p := Permission{ID: m.state.nextPermID, Module: spec.Module, Action: spec.Action, Description: spec.Description}
	m.state.perms[p.ID] = p
	m.state.nextPermID++
	return p, nil
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make([]Role, 0, len(m.state.roles))
	for id := range m.state.roles {
		roles = append(roles, m.state.materialize(id))
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Nom != roles[j].Nom {
			return roles[i].Nom < roles[j].Nom
		}
		return roles[i].ID < roles[j].ID
	})
	return roles, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.roles[id]; !ok {
		return Role{}, ErrNotFound
	}
	return m.state.materialize(id), nil
}

func (m *mockRepository) GetRoleByNom(ctx context.Context, nom string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.state.roles {
		if r.role.Nom == nom {
			return m.state.materialize(id), nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *mockRepository) UserGrants(ctx context.Context, userID int64) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userGrantCalls++
	if m.userGrantsErr != nil {
		return nil, m.userGrantsErr
	}
	held, ok := m.state.userRoles[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	ids := make(map[int64]struct{})
	for rid := range held {
		r, ok := m.state.roles[rid]
		if !ok {
			continue
		}
		for g := range r.grants {
			ids[g] = struct{}{}
		}
	}
	return sortedPermissions(m.state.perms, ids), nil
}

// WithTx runs fn against a copy of the state and publishes it only on success.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &mockTxRepo{mock: m, state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s *mockState) materialize(id int64) Role {
	r := s.roles[id]
	role := r.role
	role.Permissions = sortedPermissions(s.perms, r.grants)
	return role
}

func sortedPermissions(all map[int64]Permission, only map[int64]struct{}) []Permission {
	out := make([]Permission, 0, len(all))
	for id, p := range all {
		if only != nil {
			if _, ok := only[id]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ============================================================================
// MOCK TX REPOSITORY
// ============================================================================

type mockTxRepo struct {
	mock  *mockRepository
	state *mockState
}

func (t *mockTxRepo) CreateRole(ctx context.Context, nom string, cout float64) (int64, error) {
	for _, r := range t.state.roles {
		if r.role.Nom == nom {
			return 0, duplicateNameError()
		}
	}
	id := t.state.nextRoleID
	t.state.nextRoleID++
	now := time.Now().UTC()
	t.state.roles[id] = &mockRole{
		role:   Role{ID: id, Nom: nom, Cout: cout, CreatedAt: now, UpdatedAt: now},
		grants: make(map[int64]struct{}),
	}
	return id, nil
}

func (t *mockTxRepo) UpdateRole(ctx context.Context, id int64, nom string, cout float64) error {
	r, ok := t.state.roles[id]
	if !ok {
		return ErrNotFound
	}
	r.role.Nom = nom
	r.role.Cout = cout
	r.role.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *mockTxRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := t.state.roles[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.roles, id)
	for _, held := range t.state.userRoles {
		delete(held, id)
	}
	return nil
}

func (t *mockTxRepo) RoleExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.state.roles[id]
	return ok, nil
}

func (t *mockTxRepo) RoleNomTaken(ctx context.Context, nom string, excludeID int64) (bool, error) {
	for id, r := range t.state.roles {
		if id != excludeID && r.role.Nom == nom {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTxRepo) CountRoleHolders(ctx context.Context, id int64) (int, error) {
	n := 0
	for _, held := range t.state.userRoles {
		if _, ok := held[id]; ok {
			n++
		}
	}
	return n, nil
}

func (t *mockTxRepo) MissingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if _, ok := t.state.perms[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}

func (t *mockTxRepo) AllPermissionIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(t.state.perms))
	for id := range t.state.perms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *mockTxRepo) ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	r, ok := t.state.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	r.grants = make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		r.grants[id] = struct{}{}
	}
	if t.mock.replaceError != nil {
		return t.mock.replaceError
	}
	return nil
}

// ============================================================================
// AUDIT AND OBSERVER FAKES
// ============================================================================

type recordingAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
	err     error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return a.err
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type decision struct {
	token   string
	allowed bool
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []decision
}

func (o *recordingObserver) ObserveDecision(token string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, decision{token: token, allowed: allowed})
}

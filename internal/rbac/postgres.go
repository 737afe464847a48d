package rbac

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintrack/maintrack/internal/platform/db"
)

const roleNomConstraint = "roles_nom_key"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository provides PostgreSQL backed persistence for the authorization model.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ============================================================================
// PERMISSIONS
// ============================================================================

const permissionColumns = `id, module, action, description`

func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY module, action, id`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *PGRepository) ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE module = $1 ORDER BY action, id`, module)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (r *PGRepository) UpsertPermission(ctx context.Context, spec PermissionSpec) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (module, action, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (module, action) DO UPDATE SET description = EXCLUDED.description
		RETURNING `+permissionColumns, spec.Module, spec.Action, spec.Description).
		Scan(&p.ID, &p.Module, &p.Action, &p.Description)
	return p, err
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ============================================================================
// ROLES
// ============================================================================

const roleSelect = `
	SELECT r.id, r.nom, r.cout, r.created_at, r.updated_at,
	       p.id, p.module, p.action, p.description
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
`

func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	return loadRoles(ctx, r.pool, roleSelect+` ORDER BY r.nom, r.id, p.module, p.action, p.id`)
}

func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return loadRole(ctx, r.pool, roleSelect+` WHERE r.id = $1 ORDER BY p.module, p.action, p.id`, id)
}

func (r *PGRepository) GetRoleByNom(ctx context.Context, nom string) (Role, error) {
	return loadRole(ctx, r.pool, roleSelect+` WHERE r.nom = $1 ORDER BY p.module, p.action, p.id`, nom)
}

func loadRole(ctx context.Context, q querier, sql string, arg any) (Role, error) {
	roles, err := loadRoles(ctx, q, sql, arg)
	if err != nil {
		return Role{}, err
	}
	if len(roles) == 0 {
		return Role{}, ErrNotFound
	}
	return roles[0], nil
}

// loadRoles folds the flattened role x permission rows into roles, keeping row order.
func loadRoles(ctx context.Context, q querier, sql string, args ...any) ([]Role, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id                   int64
			nom                  string
			cout                 pgtype.Numeric
			createdAt, updatedAt time.Time
			permID               pgtype.Int8
			module, action, desc pgtype.Text
		)
		if err := rows.Scan(&id, &nom, &cout, &createdAt, &updatedAt, &permID, &module, &action, &desc); err != nil {
			return nil, err
		}
		pos, ok := index[id]
		if !ok {
			role := Role{ID: id, Nom: nom, Permissions: []Permission{}, CreatedAt: createdAt, UpdatedAt: updatedAt}
			if cout.Valid {
				f, _ := cout.Float64Value()
				role.Cout = f.Float64
			}
			roles = append(roles, role)
			pos = len(roles) - 1
			index[id] = pos
		}
		if permID.Valid {
			roles[pos].Permissions = append(roles[pos].Permissions, Permission{
				ID:          permID.Int64,
				Module:      module.String,
				Action:      action.String,
				Description: desc.String,
			})
		}
	}
	return roles, rows.Err()
}

// ============================================================================
// AUTHORIZATION READ
// ============================================================================

func (r *PGRepository) UserGrants(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, p.id, p.module, p.action, p.description
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN role_permissions rp ON rp.role_id = ur.role_id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE u.id = $1
		ORDER BY p.module, p.action, p.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := false
	seen := make(map[int64]struct{})
	perms := []Permission{}
	for rows.Next() {
		var (
			uid                  int64
			permID               pgtype.Int8
			module, action, desc pgtype.Text
		)
		if err := rows.Scan(&uid, &permID, &module, &action, &desc); err != nil {
			return nil, err
		}
		found = true
		if !permID.Valid {
			continue
		}
		if _, dup := seen[permID.Int64]; dup {
			continue
		}
		seen[permID.Int64] = struct{}{}
		perms = append(perms, Permission{ID: permID.Int64, Module: module.String, Action: action.String, Description: desc.String})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return perms, nil
}

// ============================================================================
// TRANSACTIONAL WRITES
// ============================================================================

func (t *txRepo) CreateRole(ctx context.Context, nom string, cout float64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO roles (nom, cout) VALUES ($1, $2) RETURNING id`, nom, numeric(cout)).Scan(&id)
	if db.IsUniqueViolation(err, roleNomConstraint) {
		return 0, duplicateNameError()
	}
	return id, err
}

func (t *txRepo) UpdateRole(ctx context.Context, id int64, nom string, cout float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE roles SET nom = $2, cout = $3, updated_at = NOW() WHERE id = $1`, id, nom, numeric(cout))
	if db.IsUniqueViolation(err, roleNomConstraint) {
		return duplicateNameError()
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteRole(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) RoleExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) RoleNomTaken(ctx context.Context, nom string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE nom = $1 AND id <> $2)`, nom, excludeID).Scan(&taken)
	return taken, err
}

func (t *txRepo) CountRoleHolders(ctx context.Context, id int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, id).Scan(&n)
	return n, err
}

func (t *txRepo) MissingPermissionIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT want.id
		FROM unnest($1::bigint[]) AS want(id)
		LEFT JOIN permissions p ON p.id = want.id
		WHERE p.id IS NULL
		ORDER BY want.id
	`, ids)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (t *txRepo) AllPermissionIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (t *txRepo) ReplaceRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}
	if len(permissionIDs) > 0 {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`, roleID, permissionIDs); err != nil {
			return fmt.Errorf("insert grants: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
	return err
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func numeric(v float64) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(v, 'f', 2, 64)); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

var _ Repository = (*PGRepository)(nil)

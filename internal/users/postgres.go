package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maintrack/maintrack/internal/platform/db"
)

const (
	emailConstraint      = "users_email_key"
	sectionNomConstraint = "sections_nom_key"
)

// PGRepository provides PostgreSQL backed persistence.
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

const userSelect = `
	SELECT u.id, u.nom, u.email, u.section_id, u.created_at, u.updated_at, r.id, r.nom
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
`

// ListUsers returns all users ordered by id.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	return r.loadUsers(ctx, userSelect+` ORDER BY u.id, r.nom`)
}

// GetUser returns one user with its roles.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (User, error) {
	users, err := r.loadUsers(ctx, userSelect+` WHERE u.id = $1 ORDER BY r.nom`, id)
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

func (r *PGRepository) loadUsers(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	index := make(map[int64]int)
	for rows.Next() {
		var (
			u                    User
			sectionID, roleID    pgtype.Int8
			roleNom              pgtype.Text
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&u.ID, &u.Nom, &u.Email, &sectionID, &createdAt, &updatedAt, &roleID, &roleNom); err != nil {
			return nil, err
		}
		pos, ok := index[u.ID]
		if !ok {
			u.CreatedAt, u.UpdatedAt = createdAt, updatedAt
			u.Roles = []RoleRef{}
			if sectionID.Valid {
				v := sectionID.Int64
				u.SectionID = &v
			}
			users = append(users, u)
			pos = len(users) - 1
			index[u.ID] = pos
		}
		if roleID.Valid {
			users[pos].Roles = append(users[pos].Roles, RoleRef{ID: roleID.Int64, Nom: roleNom.String})
		}
	}
	return users, rows.Err()
}

// ListSections returns every section ordered by name.
func (r *PGRepository) ListSections(ctx context.Context) ([]Section, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nom, responsable_id, created_at FROM sections ORDER BY nom, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// GetSection returns one section.
func (r *PGRepository) GetSection(ctx context.Context, id int64) (Section, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, nom, responsable_id, created_at FROM sections WHERE id = $1`, id)
	s, err := scanSection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Section{}, ErrSectionNotFound
	}
	return s, err
}

func scanSection(row pgx.Row) (Section, error) {
	var (
		s           Section
		responsable pgtype.Int8
	)
	if err := row.Scan(&s.ID, &s.Nom, &responsable, &s.CreatedAt); err != nil {
		return Section{}, err
	}
	if responsable.Valid {
		v := responsable.Int64
		s.ResponsableID = &v
	}
	return s, nil
}

// ============================================================================
// TRANSACTIONAL WRITES
// ============================================================================

func (t *txRepo) CreateUser(ctx context.Context, u User) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users (nom, email, password_hash, section_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, u.Nom, u.Email, u.PasswordHash, u.SectionID).Scan(&id)
	if db.IsUniqueViolation(err, emailConstraint) {
		return 0, duplicateEmailError()
	}
	return id, err
}

func (t *txRepo) UpdateUser(ctx context.Context, u User, withPassword bool) error {
	var err error
	if withPassword {
		_, err = t.tx.Exec(ctx, `
			UPDATE users SET nom = $2, email = $3, section_id = $4, password_hash = $5, updated_at = NOW()
			WHERE id = $1
		`, u.ID, u.Nom, u.Email, u.SectionID, u.PasswordHash)
	} else {
		_, err = t.tx.Exec(ctx, `
			UPDATE users SET nom = $2, email = $3, section_id = $4, updated_at = NOW()
			WHERE id = $1
		`, u.ID, u.Nom, u.Email, u.SectionID)
	}
	if db.IsUniqueViolation(err, emailConstraint) {
		return duplicateEmailError()
	}
	return err
}

func (t *txRepo) DeleteUser(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID).Scan(&taken)
	return taken, err
}

func (t *txRepo) MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT want.id
		FROM unnest($1::bigint[]) AS want(id)
		LEFT JOIN roles r ON r.id = want.id
		WHERE r.id IS NULL
		ORDER BY want.id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

func (t *txRepo) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, userID, roleIDs)
	return err
}

func (t *txRepo) CreateSection(ctx context.Context, nom string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sections (nom) VALUES ($1) RETURNING id`, nom).Scan(&id)
	if db.IsUniqueViolation(err, sectionNomConstraint) {
		return 0, ErrDuplicateSection
	}
	return id, err
}

func (t *txRepo) SectionExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) SectionNomTaken(ctx context.Context, nom string) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sections WHERE nom = $1)`, nom).Scan(&taken)
	return taken, err
}

func (t *txRepo) SetSectionResponsable(ctx context.Context, sectionID int64, userID *int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE sections SET responsable_id = $2 WHERE id = $1`, sectionID, userID)
	return err
}

var _ Repository = (*PGRepository)(nil)

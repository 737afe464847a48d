package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one ordered schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema steps in application order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "permission catalog",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					module TEXT NOT NULL,
					action TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT permissions_module_action_key UNIQUE (module, action)
				);
				CREATE INDEX IF NOT EXISTS idx_permissions_module ON permissions(module);
			`,
		},
		{
			Version:     2,
			Description: "roles and grant sets",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					nom TEXT NOT NULL,
					cout NUMERIC(14,2) NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT roles_nom_key UNIQUE (nom)
				);
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE RESTRICT,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "sections, users and role assignments",
			SQL: `
				CREATE TABLE IF NOT EXISTS sections (
					id BIGSERIAL PRIMARY KEY,
					nom TEXT NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					nom TEXT NOT NULL,
					email TEXT NOT NULL,
					password_hash TEXT NOT NULL,
					section_id BIGINT REFERENCES sections(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT users_email_key UNIQUE (email)
				);
				ALTER TABLE sections ADD COLUMN IF NOT EXISTS responsable_id BIGINT REFERENCES users(id) ON DELETE SET NULL;
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);
				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
		},
		{
			Version:     4,
			Description: "login sessions and audit log",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_sessions (
					id TEXT PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					ip TEXT,
					ua TEXT
				);
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					actor_id BIGINT NOT NULL DEFAULT 0,
					action TEXT NOT NULL,
					entity TEXT NOT NULL,
					entity_id TEXT NOT NULL,
					meta JSONB,
					occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return 0, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range Migrations() {
		var done bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&done); err != nil {
			return applied, fmt.Errorf("platform/db: check migration %d: %w", m.Version, err)
		}
		if done {
			continue
		}
		err := WithTx(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("platform/db: migration %d (%s): %w", m.Version, m.Description, err)
		}
		applied++
	}
	return applied, nil
}

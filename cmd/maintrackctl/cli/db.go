package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maintrack/maintrack/internal/app"
	"github.com/maintrack/maintrack/internal/platform/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			applied, err := db.Migrate(cmd.Context(), e.pool)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var opts app.SeedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision the builtin catalog and grant it to the admin role",
		Long: `Seed upserts the builtin permission catalog, ensures the admin role exists and
replaces its grants with the whole catalog. With --admin-email it also creates an
admin account holding that role. Seed is idempotent and doubles as a re-sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()
			if _, err := db.Migrate(cmd.Context(), e.pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			svc, err := e.services()
			if err != nil {
				return err
			}
			if opts.AdminRole == "" {
				opts.AdminRole = e.cfg.AdminRole
			}
			res, err := app.Seed(cmd.Context(), svc, opts, e.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog: %d permission(s)\n", res.Permissions)
			fmt.Fprintf(out, "role %q (id %d) holds %d permission(s)\n", res.Role.Nom, res.Role.ID, len(res.Role.Permissions))
			if res.AdminUserID > 0 {
				fmt.Fprintf(out, "admin account created (id %d)\n", res.AdminUserID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AdminRole, "role", "", "admin role name (default RBAC_ADMIN_ROLE)")
	cmd.Flags().StringVar(&opts.AdminName, "admin-name", "", "display name of the admin account")
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "", "create an admin account with this email")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "password of the admin account")

	return cmd
}

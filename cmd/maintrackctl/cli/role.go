package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maintrack/maintrack/internal/rbac"
)

func newSyncRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-role [name]",
		Short: "Replace a role's grants with every permission in the catalog",
		Long: `sync-role grants the named role (default RBAC_ADMIN_ROLE) every permission
currently in the catalog. Permissions added afterwards are not granted until the
next sync.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()
			svc, err := e.services()
			if err != nil {
				return err
			}
			name := e.cfg.AdminRole
			if len(args) == 1 {
				name = args[0]
			}
			role, err := svc.Roles.SyncRoleWithCatalog(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "role %q now holds %d permission(s)\n", role.Nom, len(role.Permissions))
			return nil
		},
	}
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var (
		jsonOutput bool
		builtin    bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the permission catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if builtin {
				return printCatalog(cmd.OutOrStdout(), builtinPermissions(), jsonOutput)
			}
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()
			perms, err := rbac.NewCatalog(rbac.NewPGRepository(e.pool)).ListAll(cmd.Context())
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), perms, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&builtin, "builtin", false, "List the builtin catalog without a database")

	return cmd
}

func builtinPermissions() []rbac.Permission {
	out := make([]rbac.Permission, 0, len(rbac.BuiltinPermissions))
	for _, spec := range rbac.BuiltinPermissions {
		out = append(out, rbac.Permission{Module: spec.Module, Action: spec.Action, Description: spec.Description})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Action < out[j].Action
	})
	return out
}

func printCatalog(w io.Writer, perms []rbac.Permission, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(perms)
	}
	if len(perms) == 0 {
		fmt.Fprintln(w, "No permissions in the catalog. Use 'maintrackctl seed' to provision it.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tDESCRIPTION")
	for _, p := range perms {
		fmt.Fprintf(tw, "%s\t%s\n", p.Token(), p.Description)
	}
	return tw.Flush()
}

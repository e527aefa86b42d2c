package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/service"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if dir == "" {
				dir = e.cfg.Postgres.MigrationsDir
			}
			if err := persistence.RunMigrations(cmd.Context(), e.pg.PoolHandle(), dir, e.logger); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var in service.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			authService, err := e.authService()
			if err != nil {
				return err
			}
			user, err := authService.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func listUsersCmd() *cobra.Command {
	var (
		role  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List accounts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *domain.Role
			if role != "" {
				r := domain.Role(role)
				if !r.Valid() {
					return fmt.Errorf("unknown role %q", role)
				}
				filter = &r
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			users, err := e.users.List(cmd.Context(), filter, limit, 0)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, u.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "filter by role (customer or admin)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func issueTokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint an access token for an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			authService, err := e.authService()
			if err != nil {
				return err
			}
			token, expiresAt, user, err := authService.IssueAccessTokenFor(cmd.Context(), email)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "token for %s (%s) expires %s\n", user.Email, user.Role, expiresAt.Format(time.RFC3339))
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

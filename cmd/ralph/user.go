package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ralph-api/internal/inventory"
	"ralph-api/internal/models"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var req models.CreateUserRequest
	var roles string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			for _, role := range strings.Split(roles, ",") {
				if role = strings.TrimSpace(role); role != "" {
					req.Roles = append(req.Roles, role)
				}
			}
			inv := inventory.New(st, inventory.WithLogger(a.log))
			u, err := inv.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, roles %s)\n", u.Username, u.ID, strings.Join(u.Roles, ","))
			return nil
		},
	}
	create.Flags().StringVar(&req.Username, "username", "", "login name")
	create.Flags().StringVar(&req.Email, "email", "", "email address")
	create.Flags().StringVar(&req.Password, "password", "", "password, at least 8 characters")
	create.Flags().StringVar(&roles, "roles", models.RoleViewer, "comma separated roles")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

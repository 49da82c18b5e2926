package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ralph-api/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID   int64
		username string
		roles    string
		expiry   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if expiry <= 0 {
				expiry = a.cfg.JWT.Expiry
			}
			roleList := strings.Split(roles, ",")
			for i, role := range roleList {
				roleList[i] = strings.TrimSpace(role)
			}

			jwtManager := auth.NewJWTManager(a.cfg.JWT.Secret, a.cfg.JWT.Issuer, a.cfg.JWT.Audience, expiry)
			token, err := jwtManager.GenerateToken(userID, username, roleList)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s (id %d)\n", username, userID)
			fmt.Fprintf(out, "Roles: %s\n", strings.Join(roleList, ", "))
			fmt.Fprintf(out, "Expiry: %s\n", expiry)
			fmt.Fprintf(out, "\nToken:\n%s\n\n", token)
			fmt.Fprintf(out, "curl -H \"Authorization: Bearer %s\" http://localhost%s/baseobject\n", token, a.cfg.HTTP.Addr)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 1, "user id")
	cmd.Flags().StringVar(&username, "username", "admin", "username")
	cmd.Flags().StringVar(&roles, "roles", "admin", "comma separated roles")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime, defaults to the configured expiry")
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/service"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var (
		userID string
		role   string
		ttl    time.Duration
		secret string
		issuer string
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a user, e.g. for service accounts or local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" || issuer == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if secret == "" {
					secret = cfg.JWT.Secret
				}
				if issuer == "" {
					issuer = cfg.JWT.Issuer
				}
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
			}
			auth := service.NewAuthService(service.AuthConfig{AccessTokenSecret: secret, Issuer: issuer})
			token, expires, err := auth.IssueToken(userID, models.UserRole(strings.ToUpper(role)), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id placed in the token")
	issue.Flags().StringVar(&role, "role", string(models.RoleApprentice), "ADMIN, SUPERVISOR or APPRENTICE")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	issue.Flags().StringVar(&secret, "secret", "", "signing secret (default: JWT_SECRET)")
	issue.Flags().StringVar(&issuer, "issuer", "", "token issuer (default: JWT_ISSUER)")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

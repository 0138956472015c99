package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/UninstallAll/AIDAscraper/internal/auth"
	"github.com/UninstallAll/AIDAscraper/internal/config"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		tenant  string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed session token for the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}

			token, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(subject, tenant, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	const defaultTTL = 24 * time.Hour
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant the token is scoped to (required)")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

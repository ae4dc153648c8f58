package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/auth"
	"github.com/Veraticus/the-spice-must-talk/internal/common"
)

func tokenCmd() *cobra.Command {
	var (
		userID   string
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for a user",
		Long: `Issue an HS256 token signed with auth.jwt_secret. Useful for local testing
of the WebSocket server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if appConfig.Auth.JWTSecret == "" {
				return common.NewUserError("auth.jwt_secret is not configured (set SPICETALK_AUTH_JWT_SECRET or JWT_SECRET)", auth.ErrMissingSecret)
			}
			verifier, err := auth.NewVerifier(appConfig.Auth.JWTSecret)
			if err != nil {
				return err
			}
			if username == "" {
				username = userID
			}
			token, err := verifier.Issue(userID, username, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID (required)")
	cmd.Flags().StringVar(&username, "username", "", "display name (default: user ID)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

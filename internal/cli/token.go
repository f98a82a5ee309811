package cli

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the reconfiguration API",
		Long:  "Sign an admin bearer token with ADMIN_JWT_SECRET. The server must run with the same secret.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = opts.env.AdminTokenTTL
			}
			token, err := auth.IssueToken([]byte(opts.env.AdminJWTSecret), subject, ttl)
			if err != nil {
				return err
			}

			if opts.text() {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"token":      token,
				"subject":    subject,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "leadctl", "Token subject, usually the operator's name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: $ADMIN_TOKEN_TTL or 1h)")
	return cmd
}

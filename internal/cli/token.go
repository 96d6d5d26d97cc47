package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/listrank/internal/auth"
)

// NewTokenCmd creates the 'token' command, which signs admin tokens locally.
func NewTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Issue an admin token",
		Example: `  ADMIN_JWT_SECRET=... rankctl token --subject alice --ttl 2h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("no signing secret: set --secret or ADMIN_JWT_SECRET")
			}
			tok, err := auth.NewTokenService(secret, "").Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("ADMIN_JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Token subject, logged with every admin request")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

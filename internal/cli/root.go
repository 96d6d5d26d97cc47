// Package cli implements rankctl, the operator CLI for the ranking server.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command that talks to a server.
type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *globalOptions) client() *Client {
	return NewClient(o.server, o.token, o.timeout)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// NewRootCmd builds the rankctl command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "rankctl",
		Short: "Operate a listing ranking server",
		Long: `rankctl manages the model bundles deployed on a ranking server,
analyzes the prediction log and sends simulated traffic.

The server URL and admin token default to LISTRANK_URL and LISTRANK_TOKEN.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("LISTRANK_URL", DefaultServerURL), "Ranking server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LISTRANK_TOKEN"), "Admin bearer token")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "HTTP request timeout")

	cmd.AddCommand(NewModelsCmd(opts))
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewSimulateCmd(opts))
	cmd.AddCommand(NewTokenCmd())

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewModelsCmd creates the 'models' command group.
func NewModelsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage deployed model bundles",
	}
	cmd.AddCommand(newModelsListCmd(opts))
	cmd.AddCommand(newModelsUploadCmd(opts))
	cmd.AddCommand(newModelsDeleteCmd(opts))
	return cmd
}

func newModelsListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployed model bundles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Models) == 0 {
				fmt.Fprintln(out, "No models found.")
				return nil
			}
			fmt.Fprintf(out, "Deployed models (%d of %d):\n", len(resp.Models), resp.MaxModels)
			for _, m := range resp.Models {
				fmt.Fprintf(out, "  - %s\n", m)
			}
			return nil
		},
	}
}

func newModelsUploadCmd(opts *globalOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "upload <name>",
		Short: "Upload a model bundle from a local directory",
		Long: `Upload model.json, transformer.json and config.json from a local
directory as a new bundle. All three files are checked before anything
is sent.`,
		Example: `  rankctl models upload baseline --dir models/baseline`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if dir == "" {
				dir = name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploading model '%s' from %s...\n", name, dir)
			msg, err := opts.client().UploadModel(cmd.Context(), name, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Bundle directory (defaults to ./<name>)")
	return cmd
}

func newModelsDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a deployed model bundle",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := opts.client().DeleteModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

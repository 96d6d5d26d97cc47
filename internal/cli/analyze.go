package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/listrank/internal/experiment"
	"github.com/onnwee/listrank/internal/predlog"
)

// NewAnalyzeCmd creates the 'analyze' command.
func NewAnalyzeCmd() *cobra.Command {
	var (
		logPath string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare models from the prediction log",
		Long: `Read the prediction log, summarize each model's predictions, compare
every pair of models with a t-test and a Mann-Whitney U test, and report
error metrics wherever observed ratings were logged.`,
		Example: `  rankctl analyze --log logs/predictions.log
  rankctl analyze --format yaml > report.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, stats, err := predlog.ReadFile(logPath)
			if err != nil {
				return err
			}
			if stats.Malformed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d malformed lines of %d\n", stats.Malformed, stats.Lines)
			}
			report := experiment.Analyze(entries, time.Now().UTC())
			return experiment.Render(cmd.OutOrStdout(), report, format)
		},
	}

	cmd.Flags().StringVarP(&logPath, "log", "l", "logs/predictions.log", "Prediction log path")
	cmd.Flags().StringVarP(&format, "format", "f", experiment.FormatText, "Output format: text or yaml")
	return cmd
}

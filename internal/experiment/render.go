package experiment

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Report output formats.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// Render writes r in the given format.
func Render(w io.Writer, r Report, format string) error {
	switch format {
	case FormatText, "":
		return RenderText(w, r)
	case FormatYAML:
		return RenderYAML(w, r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// RenderYAML writes r as a YAML document.
func RenderYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// RenderText writes r as aligned human-readable tables.
func RenderText(w io.Writer, r Report) error {
	fmt.Fprintf(w, "Prediction log analysis (%d entries)\n\n", r.Entries)

	if len(r.Models) == 0 {
		fmt.Fprintln(w, "No predictions logged.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tN\tMEAN\tMEDIAN\tSTD\tMIN\tP25\tP75\tMAX")
	for _, m := range r.Models {
		s := m.Predictions
		if s.Empty() {
			fmt.Fprintf(tw, "%s\t0\t-\t-\t-\t-\t-\t-\t-\n", m.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, s.Count, num(s.Mean), num(s.Median), num(s.StdDev), num(s.Min), num(s.P25), num(s.P75), num(s.Max))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nError metrics against observed ratings")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tPAIRS\tMAE\tRMSE\tPEARSON")
	for _, m := range r.Models {
		if m.Errors == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\tskipped: %s\n", m.Name, m.ErrorsSkipped)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", m.Name, m.Errors.N, num(m.Errors.MAE), num(m.Errors.RMSE), num(m.Errors.Pearson))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nPairwise comparisons")
	if r.InsufficientModels {
		fmt.Fprintf(w, "Insufficient models: at least two models with %d or more predictions are required.\n", MinSamples)
		return nil
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODELS\tMEAN DIFF\tT\tP(T)\tU\tP(U)\tSIGNIFICANT")
	for _, c := range r.Comparisons {
		fmt.Fprintf(tw, "%s vs %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ModelA, c.ModelB, num(c.MeanDiff),
			num(c.TTest.Statistic), num(c.TTest.PValue),
			num(c.MannWhitney.Statistic), num(c.MannWhitney.PValue),
			significance(c))
	}
	return tw.Flush()
}

func significance(c Comparison) string {
	switch {
	case c.TTest.Significant && c.MannWhitney.Significant:
		return "yes (both)"
	case c.TTest.Significant:
		return "t-test only"
	case c.MannWhitney.Significant:
		return "mann-whitney only"
	default:
		return "no"
	}
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

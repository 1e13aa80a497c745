package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-cli/internal/config"
	"github.com/sells-group/contact-cli/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate match statistics and impact metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		applyImpact(stats, cfg.Metrics)

		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// applyImpact fills the time/money-saved estimates from the configured
// manual-research assumptions.
func applyImpact(st *model.Stats, m config.MetricsConfig) {
	st.HoursSaved = float64(st.TotalProcessed) * float64(m.ManualMinutesPerRecord) / 60
	st.DollarsSaved = st.HoursSaved * float64(m.HourlyRateUSD)
}

// formatStats writes aggregate stats to w.
func formatStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total jobs:\t%d\n", s.TotalJobs)
	_, _ = fmt.Fprintf(w, "Records processed:\t%d\n", s.TotalProcessed)
	_, _ = fmt.Fprintf(w, "  Found:\t%d\n", s.Found)
	_, _ = fmt.Fprintf(w, "  Partial:\t%d\n", s.Partial)
	_, _ = fmt.Fprintf(w, "  Not found:\t%d\n", s.NotFound)
	_, _ = fmt.Fprintf(w, "  Errors:\t%d\n", s.Errors)
	_, _ = fmt.Fprintf(w, "Success rate:\t%.1f%%\n", s.SuccessRatePct)
	_, _ = fmt.Fprintf(w, "Hours saved:\t%.1f\n", s.HoursSaved)
	_, _ = fmt.Fprintf(w, "Dollars saved:\t$%.2f\n", s.DollarsSaved)
	_ = w.Flush()
}

package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/ingest"
	"github.com/sells-group/contact-cli/internal/model"
	"github.com/sells-group/contact-cli/internal/store"
)

const exportPageSize = 500

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export job results to an XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := collectRecords(ctx, st, jobID)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(records) == 0 {
			return eris.Errorf("no records for job %s", jobID)
		}

		out := exportOutPath
		if out == "" {
			out = "results_" + truncateID(jobID) + ".xlsx"
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}
		defer f.Close() //nolint:errcheck

		if err := ingest.WriteResults(f, records); err != nil {
			return eris.Wrap(err, "write results")
		}

		zap.L().Info("export complete",
			zap.String("job_id", jobID),
			zap.Int("records", len(records)),
			zap.String("file", out),
		)
		return nil
	},
}

// collectRecords pages through all records of a job.
func collectRecords(ctx context.Context, st store.Store, jobID string) ([]model.ProviderRecord, error) {
	var all []model.ProviderRecord
	for offset := 0; ; offset += exportPageSize {
		page, err := st.ListRecords(ctx, jobID, offset, exportPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output file path (default results_<job-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}

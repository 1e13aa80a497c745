package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/ingest"
)

var importXLSXPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a provider roster and process it to completion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		providers, err := ingest.ParseRoster(importXLSXPath)
		if err != nil {
			return eris.Wrap(err, "parse roster")
		}

		job, err := env.Store.CreateJob(ctx, importXLSXPath, providers)
		if err != nil {
			return eris.Wrap(err, "create job")
		}

		zap.L().Info("job created",
			zap.String("job_id", job.ID),
			zap.Int("records", job.TotalRecords),
		)

		if err := env.Orchestrator.ProcessJob(ctx, job, providers); err != nil {
			return eris.Wrap(err, "process job")
		}

		final, err := env.Store.GetJob(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "reload job")
		}

		zap.L().Info("import complete",
			zap.String("job_id", final.ID),
			zap.String("status", string(final.Status)),
			zap.Int("processed", final.ProcessedRecords),
			zap.Int("found", final.FoundCount),
			zap.Int("not_found", final.NotFoundCount),
			zap.Int("errors", final.ErrorCount),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to roster XLSX file (required)")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}

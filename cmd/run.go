package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/model"
)

var runProvider model.Provider

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve contact details for a single provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if runProvider.ProjectID == "" {
			runProvider.ProjectID = "adhoc"
		}

		result, err := env.Resolver.Resolve(ctx, runProvider)
		if err != nil {
			return eris.Wrap(err, "resolve provider")
		}

		zap.L().Info("resolution complete",
			zap.String("provider", runProvider.FullName()),
			zap.String("status", string(result.Status)),
			zap.Int("confidence", result.Confidence),
			zap.Int("retries", result.Retries),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProvider.ProjectID, "project-id", "", "roster project ID")
	runCmd.Flags().StringVar(&runProvider.FirstName, "first-name", "", "provider first name (required)")
	runCmd.Flags().StringVar(&runProvider.MiddleName, "middle-name", "", "provider middle name")
	runCmd.Flags().StringVar(&runProvider.LastName, "last-name", "", "provider last name (required)")
	runCmd.Flags().StringVar(&runProvider.AddressLine1, "address1", "", "address line 1")
	runCmd.Flags().StringVar(&runProvider.AddressLine2, "address2", "", "address line 2")
	runCmd.Flags().StringVar(&runProvider.City, "city", "", "city")
	runCmd.Flags().StringVar(&runProvider.StateCode, "state", "", "two-letter state code")
	_ = runCmd.MarkFlagRequired("first-name")
	_ = runCmd.MarkFlagRequired("last-name")
	rootCmd.AddCommand(runCmd)
}

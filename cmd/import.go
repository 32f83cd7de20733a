package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load hazard reports from a JSON file",
	Long:  "Upserts an array of reports by ID. Reports without an ID get one assigned.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}
		var reports []model.Report
		if err := json.Unmarshal(data, &reports); err != nil {
			return eris.Wrap(err, "parse import file")
		}
		for i := range reports {
			if reports[i].ID == "" {
				reports[i].ID = uuid.NewString()
			}
			if reports[i].Status == "" {
				reports[i].Status = model.StatusPendingReview
			}
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ImportReports(cmd.Context(), reports)
		if err != nil {
			return err
		}
		zap.L().Info("reports imported",
			zap.Int("parsed", len(reports)),
			zap.Int64("written", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "reports JSON file (required)")
	importCmd.MarkFlagRequired("file") //nolint:errcheck
	rootCmd.AddCommand(importCmd)
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <report-id>",
	Short: "Run the post-save similarity check for a stored report and cluster any matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Store.GetReport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return eris.Errorf("report not found: %s", args[0])
		}

		matches := env.Similarity.FindSimilarReports(cmd.Context(), report)

		out := struct {
			ReportID  string         `json:"report_id"`
			Matches   []model.Report `json:"matches"`
			ClusterID string         `json:"cluster_id,omitempty"`
		}{ReportID: report.ID, Matches: matches}

		if len(matches) > 0 {
			group := append([]model.Report{*report}, matches...)
			clusterID, err := env.Clusters.CreateCluster(cmd.Context(), group)
			if err != nil {
				return err
			}
			out.ClusterID = clusterID
		}

		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

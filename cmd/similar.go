package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

var similarFile string

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Run the pre-save duplicate check on a submission JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(similarFile)
		if err != nil {
			return eris.Wrap(err, "read submission file")
		}
		var sub model.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return eris.Wrap(err, "parse submission file")
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		matches := env.Similarity.CheckSimilarBeforeSubmit(cmd.Context(), sub)
		return printJSON(matches)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	os.Stdout.Write(out)
	os.Stdout.WriteString("\n")
	return nil
}

func init() {
	similarCmd.Flags().StringVarP(&similarFile, "file", "f", "", "submission JSON file (required)")
	similarCmd.MarkFlagRequired("file") //nolint:errcheck
	rootCmd.AddCommand(similarCmd)
}

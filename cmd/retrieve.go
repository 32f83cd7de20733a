package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	retrieveQueryFile string
	retrieveKBs       []string
	retrieveTopK      int
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Rank knowledge-base chunks against a query embedding",
	Long:  "Reads a query embedding (JSON array of floats) and returns the top-K most similar chunks per knowledge base.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(retrieveQueryFile)
		if err != nil {
			return eris.Wrap(err, "read query file")
		}
		var query []float32
		if err := json.Unmarshal(data, &query); err != nil {
			return eris.Wrap(err, "parse query vector")
		}
		if len(query) == 0 {
			return eris.New("query vector is empty")
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		topK := retrieveTopK
		if topK <= 0 {
			topK = cfg.Retrieval.DefaultTopK
		}

		results := env.Retrieval.RetrieveAll(cmd.Context(), query, retrieveKBs, topK)
		return printJSON(results)
	},
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveQueryFile, "query", "q", "", "query embedding JSON file (required)")
	retrieveCmd.Flags().StringSliceVar(&retrieveKBs, "kb", nil, "knowledge base IDs (required, repeatable)")
	retrieveCmd.Flags().IntVar(&retrieveTopK, "top-k", 0, "chunks per knowledge base (default from config)")
	retrieveCmd.MarkFlagRequired("query") //nolint:errcheck
	retrieveCmd.MarkFlagRequired("kb")    //nolint:errcheck
	rootCmd.AddCommand(retrieveCmd)
}

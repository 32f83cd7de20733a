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

var kbLoadFile string

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge-base chunks",
}

var kbLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load pre-embedded chunks from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(kbLoadFile)
		if err != nil {
			return eris.Wrap(err, "read chunks file")
		}
		var chunks []model.Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return eris.Wrap(err, "parse chunks file")
		}
		for i := range chunks {
			if chunks[i].ID == "" {
				chunks[i].ID = uuid.NewString()
			}
			if chunks[i].KnowledgeBaseID == "" {
				return eris.Errorf("chunk %s has no knowledge_base_id", chunks[i].ID)
			}
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.InsertChunks(cmd.Context(), chunks); err != nil {
			return err
		}
		zap.L().Info("chunks loaded", zap.Int("count", len(chunks)))
		return nil
	},
}

func init() {
	kbLoadCmd.Flags().StringVarP(&kbLoadFile, "file", "f", "", "chunks JSON file (required)")
	kbLoadCmd.MarkFlagRequired("file") //nolint:errcheck
	kbCmd.AddCommand(kbLoadCmd)
	rootCmd.AddCommand(kbCmd)
}

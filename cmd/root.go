package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldsafe/hazard-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hazard-engine",
	Short: "Similarity engine for field safety-hazard reports",
	Long:  "Scores hazard report submissions for duplicates, groups recurring findings into clusters, surfaces pain points, and ranks knowledge-base context for report analysis.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

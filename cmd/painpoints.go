package main

import (
	"github.com/spf13/cobra"
)

var painpointsCmd = &cobra.Command{
	Use:   "painpoints",
	Short: "List clusters large enough to indicate recurring problem areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		points, err := env.PainPoints.GetPainPoints(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(points)
	},
}

func init() {
	rootCmd.AddCommand(painpointsCmd)
}

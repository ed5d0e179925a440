package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"news-digest/internal/app"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Print the clusters a run would summarize, without calling the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := app.BuildClusters()
		if err != nil {
			return err
		}
		defer deps.Close()

		_, clusters, err := loadClusters(cmd, deps)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(clusters); err != nil {
			return fmt.Errorf("writing clusters: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clustersCmd)
}

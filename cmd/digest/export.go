package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"news-digest/internal/app"
	"news-digest/internal/cache"
	"news-digest/internal/digest"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write cached records as JSON lines with sources expanded",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := app.BuildExport()
		if err != nil {
			return err
		}
		defer deps.Close()

		rc := cache.NewResultCache(deps.Store, deps.Log)
		if err := rc.Load(ctx); err != nil {
			return err
		}
		docs, err := deps.Corpus.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading corpus: %w", err)
		}
		records, err := digest.ExpandSources(rc.Records(), docs)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := digest.WriteJSONL(w, records); err != nil {
			return err
		}
		deps.Log.Info("records exported", "records", len(records), "output", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "Output file (- for stdout)")
	rootCmd.AddCommand(exportCmd)
}

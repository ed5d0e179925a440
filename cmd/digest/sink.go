package main

import (
	"github.com/spf13/cobra"

	"news-digest/internal/app"
	"news-digest/internal/queue"
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Consume published records and save them into the result store",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := app.BuildSink()
		if err != nil {
			return err
		}
		defer deps.Close()

		deps.Log.Info("waiting for records", "subject", string(queue.TaskTypeRecordReady))
		return deps.Queue.Worker(cmd.Context(), queue.TaskTypeRecordReady, queue.RecordSink(deps.Store))
	},
}

func init() {
	rootCmd.AddCommand(sinkCmd)
}

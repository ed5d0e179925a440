// Command digest clusters a news corpus and writes one summary record per cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "Cluster news articles and summarize each cluster",
	Long: `digest groups corpus documents that cover the same event and asks an LLM
for one consolidated summary per group. Results are cached by cluster id, so an
interrupted run can be restarted and only pending clusters are processed.

Configuration comes from the environment (and .env when present).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

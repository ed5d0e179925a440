package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"news-digest/internal/app"
	"news-digest/internal/cache"
	"news-digest/internal/cluster"
	"news-digest/internal/corpus"
	"news-digest/internal/digest"
	"news-digest/internal/queue"
)

var runWorkers int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster the corpus and summarize every pending cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := app.BuildRun()
		if err != nil {
			return err
		}
		defer deps.Close()

		cfg := deps.Config
		runID := uuid.NewString()
		log := deps.Log.With("run_id", runID)

		docs, clusters, err := loadClusters(cmd, deps)
		if err != nil {
			return err
		}

		rc := cache.NewResultCache(deps.Store, log)
		if err := rc.Load(ctx); err != nil {
			log.Warn("result cache unavailable; starting empty", "err", err)
		}

		orchDeps := digest.Deps{
			Cache:      rc,
			Summarizer: deps.Summarizer,
			Embedder:   deps.Embedder,
			Scorer:     deps.Scorer,
			Log:        log,
		}
		if deps.Queue != nil {
			orchDeps.Publisher = queue.NewRecordPublisher(deps.Queue, runID)
		}

		workers := cfg.Workers
		if runWorkers > 0 {
			workers = runWorkers
		}
		stats := digest.New(docs, orchDeps, digest.Options{
			Language:        cfg.SummaryLanguage,
			PersistDegraded: cfg.PersistDegraded,
			Workers:         workers,
			CheckpointEvery: cfg.CheckpointEvery,
		}).Run(ctx, clusters)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		return ctx.Err()
	},
}

// loadClusters reads the corpus and groups it.
func loadClusters(cmd *cobra.Command, deps *app.Deps) ([]corpus.Document, []cluster.Cluster, error) {
	ctx := cmd.Context()
	cfg := deps.Config

	field, err := corpus.ParseField(cfg.ClusterText)
	if err != nil {
		return nil, nil, err
	}
	docs, err := deps.Corpus.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	deps.Log.Info("corpus loaded", "documents", len(docs))

	c := cluster.New(deps.Embedder, cfg.SimilarityThreshold, deps.Log,
		cluster.WithBatchSize(cfg.EmbeddingBatchSize),
	)
	clusters, err := c.Cluster(ctx, corpus.ClusterTexts(docs, field))
	if err != nil {
		return nil, nil, err
	}
	return docs, clusters, nil
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Clusters processed concurrently (overrides WORKERS)")
	rootCmd.AddCommand(runCmd)
}

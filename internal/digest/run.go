package digest

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"news-digest/internal/cluster"
)

// Stats counts outcomes of a run.
type Stats struct {
	Clusters   int `json:"clusters"`
	Summarized int `json:"summarized"`
	Cached     int `json:"cached"`
	Claimed    int `json:"claimed"`
	Incomplete int `json:"incomplete"`
	Degraded   int `json:"degraded"`
	Withheld   int `json:"withheld"`
	Failed     int `json:"failed"`
}

func (s *Stats) add(o Outcome) {
	switch o {
	case OutcomeSummarized:
		s.Summarized++
	case OutcomeCached:
		s.Cached++
	case OutcomeClaimed:
		s.Claimed++
	case OutcomeIncomplete:
		s.Incomplete++
	case OutcomeDegraded:
		s.Degraded++
	case OutcomeWithheld:
		s.Withheld++
	default:
		s.Failed++
	}
}

// Run processes every cluster with up to Options.Workers in flight. Errors stay inside
// their cluster; the cache is flushed at checkpoints and once more at the end, even when
// ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, clusters []cluster.Cluster) Stats {
	log := o.deps.Log
	stats := Stats{Clusters: len(clusters)}
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, c := range clusters {
		if ctx.Err() != nil {
			log.Warn("run cancelled; remaining clusters stay pending", "err", ctx.Err())
			break
		}
		g.Go(func() error {
			outcome, err := o.Process(ctx, c)
			if err != nil {
				log.Error("cluster failed", "cluster_id", c.ID, "err", err)
			}

			mu.Lock()
			stats.add(outcome)
			done++
			progress := done
			mu.Unlock()
			log.Info("processed cluster", "cluster_id", c.ID, "outcome", outcome.String(), "done", progress, "total", len(clusters))

			if outcome == OutcomeSummarized || outcome == OutcomeDegraded {
				o.checkpoint(ctx)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := o.deps.Cache.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Error("final flush failed", "err", err)
	}
	log.Info("run finished",
		"clusters", stats.Clusters,
		"summarized", stats.Summarized,
		"cached", stats.Cached,
		"degraded", stats.Degraded,
		"withheld", stats.Withheld,
		"incomplete", stats.Incomplete,
		"failed", stats.Failed,
	)
	return stats
}

func (o *Orchestrator) checkpoint(ctx context.Context) {
	every := o.opts.CheckpointEvery
	if every <= 0 || o.deps.Cache.Pending() < every {
		return
	}
	if err := o.deps.Cache.Flush(context.WithoutCancel(ctx)); err != nil {
		o.deps.Log.Error("checkpoint failed", "err", err)
		return
	}
	o.deps.Log.Info("checkpoint saved", "records", o.deps.Cache.Len())
}

// Package digest turns clusters of documents into persisted summary records.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"news-digest/internal/cache"
	"news-digest/internal/cluster"
	"news-digest/internal/corpus"
	"news-digest/internal/embeddings"
	"news-digest/internal/llm"
	"news-digest/internal/logger"
	"news-digest/internal/toxicity"
)

// Summarizer produces text for a prompt or llm.Unavailable.
type Summarizer interface {
	Send(ctx context.Context, prompt string) string
}

// Publisher is told about every record after it is stored.
type Publisher interface {
	PublishRecord(ctx context.Context, r cache.Record) error
}

// Outcome says what Process did with a cluster.
type Outcome int

const (
	OutcomeSummarized Outcome = iota
	OutcomeCached             // a record already existed
	OutcomeClaimed            // another worker holds the cluster
	OutcomeIncomplete         // a member lacks title or content
	OutcomeDegraded           // the failure sentinel was recorded
	OutcomeWithheld           // the failure sentinel was not recorded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSummarized:
		return "summarized"
	case OutcomeCached:
		return "cached"
	case OutcomeClaimed:
		return "claimed"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeWithheld:
		return "withheld"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Options tune a run.
type Options struct {
	Language        string
	PersistDegraded bool
	Workers         int
	CheckpointEvery int
}

// Deps are the collaborators of an Orchestrator. Scorer and Publisher are optional.
type Deps struct {
	Cache      *cache.ResultCache
	Summarizer Summarizer
	Embedder   embeddings.Embedder
	Scorer     toxicity.Scorer
	Publisher  Publisher
	Log        *slog.Logger
}

// Orchestrator summarizes clusters of a fixed corpus into the result cache.
type Orchestrator struct {
	docs []corpus.Document
	deps Deps
	opts Options
}

func New(docs []corpus.Document, deps Deps, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Language == "" {
		opts.Language = "italian"
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	return &Orchestrator{docs: docs, deps: deps, opts: opts}
}

// Process summarizes one cluster and stores its record. A cluster that already has a
// record is skipped without any external call. Failures leave the cluster pending.
func (o *Orchestrator) Process(ctx context.Context, c cluster.Cluster) (Outcome, error) {
	log := o.deps.Log.With("cluster_id", c.ID)

	if o.deps.Cache.Contains(c.ID) {
		log.Debug("cluster already summarized; skipping")
		return OutcomeCached, nil
	}

	members, err := o.members(c)
	if err != nil {
		return OutcomeFailed, err
	}
	if len(members) == 0 {
		log.Info("skipping empty cluster")
		return OutcomeIncomplete, nil
	}
	for _, d := range members {
		if !d.Complete() {
			log.Info("skipping cluster: member missing title or content", "member", d.Index)
			return OutcomeIncomplete, nil
		}
	}

	if !o.deps.Cache.Claim(c.ID) {
		if o.deps.Cache.Contains(c.ID) {
			return OutcomeCached, nil
		}
		log.Debug("cluster claimed by another worker")
		return OutcomeClaimed, nil
	}
	stored := false
	defer func() {
		if !stored {
			o.deps.Cache.Release(c.ID)
		}
	}()

	prompt := BuildPrompt(BuildInput(members), o.opts.Language)
	summary := o.deps.Summarizer.Send(ctx, prompt)
	degraded := llm.IsUnavailable(summary)
	if degraded && !o.opts.PersistDegraded {
		log.Warn("summary unavailable; leaving cluster pending")
		return OutcomeWithheld, nil
	}

	similarity, err := o.similarities(ctx, summary, members)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("scoring agreement for cluster %d: %w", c.ID, err)
	}

	var scores *toxicity.Scores
	if o.deps.Scorer != nil {
		s, err := o.deps.Scorer.Score(ctx, summary)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("scoring toxicity for cluster %d: %w", c.ID, err)
		}
		scores = &s
	}

	rep := o.docs[c.ID]
	record := cache.Record{
		ClusterID:  c.ID,
		Date:       rep.Date,
		Tags:       slices.Clone([]string(rep.Tags)),
		Sources:    slices.Clone(c.Members),
		Similarity: similarity,
		Question:   prompt,
		Answer:     summary,
		Toxicity:   scores,
	}
	stored = true
	if !o.deps.Cache.Put(record) {
		log.Warn("record appeared while summarizing; keeping existing")
		return OutcomeCached, nil
	}

	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.PublishRecord(ctx, record); err != nil {
			log.Warn("failed to publish record", "err", err)
		}
	}

	if degraded {
		log.Warn("recorded degraded summary")
		return OutcomeDegraded, nil
	}
	log.Info("cluster summarized", "members", len(members))
	return OutcomeSummarized, nil
}

func (o *Orchestrator) members(c cluster.Cluster) ([]corpus.Document, error) {
	if c.ID < 0 || c.ID >= len(o.docs) {
		return nil, fmt.Errorf("cluster id %d outside corpus of %d documents", c.ID, len(o.docs))
	}
	out := make([]corpus.Document, len(c.Members))
	for i, idx := range c.Members {
		if idx < 0 || idx >= len(o.docs) {
			return nil, fmt.Errorf("cluster %d: member %d outside corpus of %d documents", c.ID, idx, len(o.docs))
		}
		out[i] = o.docs[idx]
	}
	return out, nil
}

// similarities scores the summary against each member's "title content", aligned with members.
// Members with an empty title or content get nil.
func (o *Orchestrator) similarities(ctx context.Context, summary string, members []corpus.Document) ([]*float64, error) {
	out := make([]*float64, len(members))

	texts := []string{summary}
	slot := make([]int, 0, len(members))
	for i, d := range members {
		if d.TitleText() == "" || d.ContentText() == "" {
			continue
		}
		texts = append(texts, d.TitleText()+" "+d.ContentText())
		slot = append(slot, i)
	}
	if len(slot) == 0 {
		return out, nil
	}

	vecs, err := o.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for k, i := range slot {
		s := embeddings.AngularSimilarity(vecs[0], vecs[k+1])
		out[i] = &s
	}
	return out, nil
}

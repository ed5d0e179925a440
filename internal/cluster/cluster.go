// Package cluster groups documents that describe the same event by thresholding
// pairwise embedding similarity.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"news-digest/internal/embeddings"
)

// DefaultThreshold is the similarity cutoff on the angular [0, 1] scale.
const DefaultThreshold = 0.4

// Cluster is a set of corpus indices keyed by its representative index.
// Members are sorted ascending and include ID.
type Cluster struct {
	ID      int   `json:"cluster_id"`
	Members []int `json:"members"`
}

// Group partitions matrix positions into clusters.
//
// Adjacent pairs (similarity > threshold) are visited in row-major order. A pair (i, j)
// extends the cluster keyed by i if one exists, else the cluster keyed by j, else opens a
// new cluster {i}. Membership in someone else's cluster does not count as assigned, so the
// result is not a transitive closure and clusters may overlap. Clusters whose member set is
// contained in another cluster's are then dropped, all decisions taken on the unpruned set.
// Output follows the order in which clusters were opened.
func Group(m *Matrix, threshold float64) []Cluster {
	n := m.Len()
	byKey := make(map[int][]int)
	var order []int
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || m.At(i, j) <= threshold {
				continue
			}
			if _, ok := byKey[i]; ok {
				byKey[i] = append(byKey[i], j)
			} else if _, ok := byKey[j]; ok {
				byKey[j] = append(byKey[j], i)
			} else {
				byKey[i] = []int{i}
				order = append(order, i)
			}
		}
	}

	clusters := make([]Cluster, 0, len(order))
	for _, key := range order {
		members := slices.Clone(byKey[key])
		slices.Sort(members)
		clusters = append(clusters, Cluster{ID: key, Members: slices.Compact(members)})
	}
	return pruneSubsets(clusters)
}

func pruneSubsets(clusters []Cluster) []Cluster {
	drop := make([]bool, len(clusters))
	for a := range clusters {
		for b := range clusters {
			if a != b && isSubset(clusters[a].Members, clusters[b].Members) {
				drop[a] = true
				break
			}
		}
	}
	kept := clusters[:0]
	for i, c := range clusters {
		if !drop[i] {
			kept = append(kept, c)
		}
	}
	return kept
}

// isSubset reports whether sorted slice a is contained in sorted slice b.
func isSubset(a, b []int) bool {
	if len(a) > len(b) {
		return false
	}
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j == len(b) || b[j] != x {
			return false
		}
		j++
	}
	return true
}

// Clusterer embeds texts and groups them.
type Clusterer struct {
	embedder    embeddings.Embedder
	threshold   float64
	batchSize   int
	concurrency int
	log         *slog.Logger
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) Option {
	return func(c *Clusterer) {
		c.batchSize = n
	}
}

// WithConcurrency sets how many embedding requests may run at once.
func WithConcurrency(n int) Option {
	return func(c *Clusterer) {
		c.concurrency = n
	}
}

func New(e embeddings.Embedder, threshold float64, log *slog.Logger, opts ...Option) *Clusterer {
	c := &Clusterer{
		embedder:    e,
		threshold:   threshold,
		batchSize:   64,
		concurrency: 1,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster groups the texts and returns clusters of indices into texts.
// Blank texts are never embedded and never join a cluster.
func (c *Clusterer) Cluster(ctx context.Context, texts []string) ([]Cluster, error) {
	var (
		kept    []string
		indexOf []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		kept = append(kept, t)
		indexOf = append(indexOf, i)
	}
	if skipped := len(texts) - len(kept); skipped > 0 {
		c.log.Info("skipping documents without text", "count", skipped)
	}
	if len(kept) < 2 {
		return nil, nil
	}

	vectors, err := embeddings.EmbedAll(ctx, c.embedder, kept, c.batchSize, c.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to embed corpus: %w", err)
	}

	groups := Group(NewMatrix(vectors), c.threshold)
	out := make([]Cluster, len(groups))
	for i, g := range groups {
		members := make([]int, len(g.Members))
		for k, pos := range g.Members {
			members[k] = indexOf[pos]
		}
		out[i] = Cluster{ID: indexOf[g.ID], Members: members}
	}
	c.log.Info("clustered corpus", "documents", len(kept), "clusters", len(out), "threshold", c.threshold)
	return out, nil
}

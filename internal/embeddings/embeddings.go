package embeddings

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder defines the embedding interface.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Equal reports whether two vectors are element-wise identical.
func Equal(a, b Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Empty or mismatched vectors yield 0.
func CosineSimilarity(a, b Vector) float32 {
	return float32(cosine(a, b))
}

func cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	denominator := math.Sqrt(normA) * math.Sqrt(normB)
	if denominator == 0 {
		return 0
	}
	c := dot / denominator
	// float error can push the ratio a hair outside acos's domain
	return math.Max(-1, math.Min(1, c))
}

// AngularSimilarity maps the angle between a and b onto [0, 1]:
// 1 - arccos(cos)/π. Orthogonal vectors score 0.5, identical vectors exactly 1.
// Empty or mismatched vectors score 0.
func AngularSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if Equal(a, b) {
		return 1.0
	}
	return 1 - math.Acos(cosine(a, b))/math.Pi
}

// TextSimilarity embeds both texts and returns their angular similarity.
func TextSimilarity(ctx context.Context, e Embedder, a, b string) (float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(vecs))
	}
	return AngularSimilarity(vecs[0], vecs[1]), nil
}

// EmbedAll embeds texts in batches of batchSize, running up to concurrency batches at once.
// The result is aligned with texts.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([]Vector, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	out := make([]Vector, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

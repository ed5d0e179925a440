package cache

import (
	"context"
	"errors"

	"news-digest/internal/toxicity"
)

// ErrNotFound is returned when no record exists for a cluster id.
var ErrNotFound = errors.New("cache: record not found")

// Record is the persisted result for one cluster. It is written once and never replaced.
type Record struct {
	ClusterID  int              `json:"cluster_id"`
	Date       string           `json:"date"`
	Tags       []string         `json:"tags"`
	Sources    []int            `json:"sources"`
	Similarity []*float64       `json:"similarity"` // aligned with Sources; null where a member had no text
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Toxicity   *toxicity.Scores `json:"toxicity,omitempty"`
}

// Store persists the whole record mapping between runs.
// Save must keep records that already exist in the backend.
type Store interface {
	Load(ctx context.Context) (map[int]Record, error)
	Save(ctx context.Context, records map[int]Record) error
	Close() error
}

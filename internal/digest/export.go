package digest

import (
	"encoding/json"
	"fmt"
	"io"

	"news-digest/internal/cache"
	"news-digest/internal/corpus"
	"news-digest/internal/toxicity"
)

// SourceDocument is a cluster member written out in full.
type SourceDocument struct {
	ID      int      `json:"id"`
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
}

// ExportRecord is a record with its sources expanded and toxicity scores flattened.
type ExportRecord struct {
	ClusterID  int              `json:"cluster_id"`
	Date       string           `json:"date"`
	Tags       []string         `json:"tags"`
	Sources    []SourceDocument `json:"sources"`
	Similarity []*float64       `json:"similarity"`
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	*toxicity.Scores
}

// ExpandSources replaces source indices with the documents they point at.
func ExpandSources(records []cache.Record, docs []corpus.Document) ([]ExportRecord, error) {
	out := make([]ExportRecord, 0, len(records))
	for _, r := range records {
		sources := make([]SourceDocument, len(r.Sources))
		for i, idx := range r.Sources {
			if idx < 0 || idx >= len(docs) {
				return nil, fmt.Errorf("record %d: source %d outside corpus of %d documents", r.ClusterID, idx, len(docs))
			}
			d := docs[idx]
			sources[i] = SourceDocument{
				ID:      idx,
				Title:   d.Title,
				Content: d.Content,
				Date:    d.Date,
				Tags:    d.Tags,
			}
		}
		similarity := r.Similarity
		if similarity == nil {
			similarity = []*float64{}
		}
		out = append(out, ExportRecord{
			ClusterID:  r.ClusterID,
			Date:       r.Date,
			Tags:       r.Tags,
			Sources:    sources,
			Similarity: similarity,
			Question:   r.Question,
			Answer:     r.Answer,
			Scores:     r.Toxicity,
		})
	}
	return out, nil
}

// WriteJSONL writes one record per line.
func WriteJSONL(w io.Writer, records []ExportRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing record %d: %w", r.ClusterID, err)
		}
	}
	return nil
}

package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single scoring request.
const DefaultTimeout = 30 * time.Second

// HTTPScorer calls a classifier service that accepts {"text": ...} and answers with Scores.
type HTTPScorer struct {
	url    string
	client *http.Client
}

// HTTPOption configures an HTTPScorer.
type HTTPOption func(*HTTPScorer)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPScorer) {
		s.client = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPScorer) {
		s.client.Timeout = timeout
	}
}

func NewHTTPScorer(url string, opts ...HTTPOption) *HTTPScorer {
	s := &HTTPScorer{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoreRequest struct {
	Text string `json:"text"`
}

func (s *HTTPScorer) Score(ctx context.Context, text string) (Scores, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return Scores{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Scores{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Scores{}, fmt.Errorf("toxicity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Scores{}, fmt.Errorf("toxicity service returned status %d: %s", resp.StatusCode, string(msg))
	}

	var scores Scores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return Scores{}, fmt.Errorf("decoding response: %w", err)
	}
	return scores, nil
}

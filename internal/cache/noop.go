package cache

import "context"

// NoOpStore keeps nothing between runs.
// Used when persistence is disabled - the run still deduplicates in memory.
type NoOpStore struct{}

// NewNoOpStore creates a new no-op store instance
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Load always returns an empty mapping
func (s *NoOpStore) Load(ctx context.Context) (map[int]Record, error) {
	return map[int]Record{}, nil
}

// Save does nothing and always succeeds
func (s *NoOpStore) Save(ctx context.Context, records map[int]Record) error {
	return nil
}

// Close does nothing and always succeeds
func (s *NoOpStore) Close() error {
	return nil
}

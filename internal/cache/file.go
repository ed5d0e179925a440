package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// FileStore keeps the mapping as one JSON object keyed by cluster id.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns an empty mapping when the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) (map[int]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	out := make(map[int]Record, len(raw))
	for k, r := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: invalid cluster id %q", s.path, k)
		}
		r.ClusterID = id
		out[id] = r
	}
	return out, nil
}

// Save merges records into the file, keeping entries already on disk.
func (s *FileStore) Save(ctx context.Context, records map[int]Record) error {
	merged, err := s.Load(ctx)
	if err != nil {
		// the unreadable file is moved aside so checkpoints can continue without losing it
		if err := os.Rename(s.path, s.CorruptPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("moving unreadable %s aside: %w", s.path, err)
		}
		merged = make(map[int]Record, len(records))
	}
	for id, r := range records {
		if _, ok := merged[id]; !ok {
			merged[id] = r
		}
	}

	out := make(map[string]Record, len(merged))
	for id, r := range merged {
		out[strconv.Itoa(id)] = r
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Write to a temp file first, then rename for atomicity
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// CorruptPath is where Save moves a file it could not parse.
func (s *FileStore) CorruptPath() string {
	return s.path + ".corrupt"
}

func (s *FileStore) Close() error {
	return nil
}

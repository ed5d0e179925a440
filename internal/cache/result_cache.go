package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// ResultCache is the in-memory view of completed clusters, backed by a Store.
// Presence of a cluster id means the cluster is done; absence means pending.
// It is safe for concurrent use.
type ResultCache struct {
	store Store
	log   *slog.Logger

	mu      sync.Mutex
	records map[int]Record
	claimed map[int]struct{}
	pending int

	flushMu sync.Mutex
}

func NewResultCache(store Store, log *slog.Logger) *ResultCache {
	return &ResultCache{
		store:   store,
		log:     log,
		records: make(map[int]Record),
		claimed: make(map[int]struct{}),
	}
}

// Load replaces the in-memory state with the store contents. On error the cache
// is left empty and usable.
func (c *ResultCache) Load(ctx context.Context) error {
	loaded, err := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = make(map[int]struct{})
	c.pending = 0
	if err != nil {
		c.records = make(map[int]Record)
		return fmt.Errorf("loading result cache: %w", err)
	}
	if loaded == nil {
		loaded = make(map[int]Record)
	}
	c.records = loaded
	c.log.Info("result cache loaded", "records", len(loaded))
	return nil
}

func (c *ResultCache) Contains(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.records[id]
	return ok
}

// Get returns the record for id or ErrNotFound.
func (c *ResultCache) Get(id int) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Claim reserves id for the caller. It fails when a record exists or another caller holds the claim.
func (c *ResultCache) Claim(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; ok {
		return false
	}
	if _, ok := c.claimed[id]; ok {
		return false
	}
	c.claimed[id] = struct{}{}
	return true
}

// Release drops a claim without recording a result.
func (c *ResultCache) Release(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, id)
}

// Put stores r unless a record for its cluster id exists, and clears any claim on it.
func (c *ResultCache) Put(r Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claimed, r.ClusterID)
	if _, ok := c.records[r.ClusterID]; ok {
		return false
	}
	c.records[r.ClusterID] = r
	c.pending++
	return true
}

// Pending counts records added since the last successful flush.
func (c *ResultCache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Flush persists a snapshot of every record.
func (c *ResultCache) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	snapshot := maps.Clone(c.records)
	flushed := c.pending
	c.mu.Unlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("flushing result cache: %w", err)
	}

	c.mu.Lock()
	c.pending -= flushed
	c.mu.Unlock()
	c.log.Debug("result cache flushed", "records", len(snapshot))
	return nil
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Records returns every record ordered by cluster id.
func (c *ResultCache) Records() []Record {
	c.mu.Lock()
	ids := slices.Sorted(maps.Keys(c.records))
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id])
	}
	c.mu.Unlock()
	return out
}

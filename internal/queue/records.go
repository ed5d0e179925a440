package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"news-digest/internal/cache"
)

// RecordPublisher announces newly persisted cluster records.
type RecordPublisher struct {
	q        Queue
	runID    string
	attempts int
	base     time.Duration
}

func NewRecordPublisher(q Queue, runID string) *RecordPublisher {
	return &RecordPublisher{
		q:        q,
		runID:    runID,
		attempts: 3,
		base:     500 * time.Millisecond,
	}
}

func (p *RecordPublisher) PublishRecord(ctx context.Context, r cache.Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", r.ClusterID, err)
	}
	task := Task{
		Type:    TaskTypeRecordReady,
		RunID:   p.runID,
		Payload: payload,
	}
	if err := EnqueueWithRetry(ctx, p.q, task, p.attempts, p.base); err != nil {
		return fmt.Errorf("publishing record %d: %w", r.ClusterID, err)
	}
	return nil
}

// DecodeRecord reads the record carried by a records.ready task.
func DecodeRecord(task Task) (cache.Record, error) {
	if task.Type != TaskTypeRecordReady {
		return cache.Record{}, fmt.Errorf("unexpected task type %q", task.Type)
	}
	var r cache.Record
	if err := json.Unmarshal(task.Payload, &r); err != nil {
		return cache.Record{}, fmt.Errorf("decoding record: %w", err)
	}
	return r, nil
}

// RecordSink returns a Handler that saves each received record into st.
// Stores never replace existing records, so redelivery is harmless.
func RecordSink(st cache.Store) Handler {
	return func(ctx context.Context, task Task) error {
		r, err := DecodeRecord(task)
		if err != nil {
			return err
		}
		return st.Save(ctx, map[int]cache.Record{r.ClusterID: r})
	}
}

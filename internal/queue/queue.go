package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"news-digest/internal/retry"
)

// TaskType names a message kind and is used as its NATS subject.
type TaskType string

// TaskTypeRecordReady announces a cluster record that was just persisted.
const TaskTypeRecordReady TaskType = "records.ready"

const defaultMaxAttempts = 5

// Task is the envelope published for downstream consumers.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Type        TaskType        `json:"type"`
	RunID       string          `json:"run_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempts    int             `json:"attempts,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	NotBefore   time.Time       `json:"not_before,omitzero"`
}

// Redelivery counts a failed delivery and returns the task to send again,
// due after an exponential backoff from now. ok is false once the task has
// used up its attempts.
func (t Task) Redelivery(now time.Time, base time.Duration) (next Task, ok bool) {
	next = t
	next.Attempts++
	if next.MaxAttempts <= 0 {
		next.MaxAttempts = defaultMaxAttempts
	}
	if next.Attempts >= next.MaxAttempts {
		return next, false
	}
	next.NotBefore = now.Add(retry.ExponentialBackoff(next.Attempts, base))
	return next, true
}

type Handler func(context.Context, Task) error

// Queue publishes tasks and runs handlers for delivered ones.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry tries Enqueue up to attempts times, backing off from base between tries.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	var err error
	for attempt := range max(attempts, 1) {
		if attempt > 0 {
			if serr := retry.Sleep(ctx, retry.ExponentialBackoff(attempt-1, base)); serr != nil {
				return serr
			}
		}
		if err = q.Enqueue(ctx, task); err == nil {
			return nil
		}
	}
	return err
}

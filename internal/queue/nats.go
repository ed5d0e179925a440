package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"news-digest/internal/retry"
)

const redeliveryBase = time.Second

// NewNATS constructs a thin NATS-based queue. Each task type is published on the
// subject of the same name; consumers share a queue group per subject.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	if task.Type == "" {
		return errors.New("task type required")
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.nc.Publish(string(task.Type), body)
}

// Worker handles tasks of taskType until ctx is done.
func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	subject := string(taskType)
	sub, err := q.nc.QueueSubscribe(subject, "digest-"+subject, func(msg *nats.Msg) {
		q.handle(ctx, msg.Data, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handle(ctx context.Context, data []byte, handler Handler) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		return
	}
	log := q.log.With("task_id", task.ID, "type", task.Type, "run_id", task.RunID)

	if wait := time.Until(task.NotBefore); wait > 0 {
		if err := retry.Sleep(ctx, wait); err != nil {
			return
		}
	}

	err := handler(ctx, task)
	if err == nil {
		return
	}

	next, ok := task.Redelivery(time.Now(), redeliveryBase)
	if !ok {
		log.Error("task permanently failed", "attempts", next.Attempts, "err", err)
		return
	}
	if enqErr := q.Enqueue(ctx, next); enqErr != nil {
		log.Error("failed to re-enqueue task after failure", "handler_err", err, "enqueue_err", enqErr)
		return
	}
	log.Warn("task failed; scheduled again", "attempts", next.Attempts, "not_before", next.NotBefore, "err", err)
}

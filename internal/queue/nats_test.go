package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-digest/internal/logger"
)

func TestNATSHandle(t *testing.T) {
	q := &natsQueue{log: logger.Discard()}

	tests := []struct {
		name      string
		task      Task
		handler   error
		wantCalls int
	}{
		{
			name:      "successful delivery",
			task:      Task{ID: uuid.New(), Type: TaskTypeRecordReady},
			wantCalls: 1,
		},
		{
			// last attempt: nothing is re-enqueued, so no connection is needed
			name:      "permanent failure is dropped",
			task:      Task{ID: uuid.New(), Type: TaskTypeRecordReady, Attempts: 4, MaxAttempts: 5},
			handler:   errors.New("store down"),
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.task)
			require.NoError(t, err)

			calls := 0
			q.handle(context.Background(), data, func(_ context.Context, got Task) error {
				calls++
				assert.Equal(t, tt.task.ID, got.ID)
				return tt.handler
			})
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestNATSHandleIgnoresGarbage(t *testing.T) {
	q := &natsQueue{log: logger.Discard()}
	q.handle(context.Background(), []byte("not json"), func(context.Context, Task) error {
		t.Fatal("handler must not run")
		return nil
	})
}

func TestNATSEnqueueRequiresType(t *testing.T) {
	q := &natsQueue{log: logger.Discard()}
	assert.Error(t, q.Enqueue(context.Background(), Task{}))
}

func TestTaskRedelivery(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		task         Task
		wantOK       bool
		wantAttempts int
		wantDelay    time.Duration
	}{
		{"first failure", Task{}, true, 1, 2 * time.Second},
		{"second failure", Task{Attempts: 1}, true, 2, 4 * time.Second},
		{"default limit reached", Task{Attempts: 4}, false, 5, 0},
		{"custom limit reached", Task{Attempts: 1, MaxAttempts: 2}, false, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := tt.task.Redelivery(now, time.Second)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAttempts, next.Attempts)
			if ok {
				assert.Equal(t, now.Add(tt.wantDelay), next.NotBefore)
			}
			assert.True(t, tt.task.NotBefore.IsZero(), "original task untouched")
		})
	}
}

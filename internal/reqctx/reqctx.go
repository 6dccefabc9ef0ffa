// Package reqctx carries the id of the running crawl task through a context.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const taskKey key = 0

// TaskContext identifies one crawl invocation
type TaskContext struct {
	TaskID    string
	StartTime time.Time
}

// NewTaskID returns an id that sorts by creation time, e.g.
// "20210215093012-1b4e28ba".
func NewTaskID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}

// WithTask attaches a fresh task id to ctx, along with a logger tagged with it.
func WithTask(ctx context.Context) context.Context {
	tc := &TaskContext{
		TaskID:    NewTaskID(),
		StartTime: time.Now(),
	}
	ctx = context.WithValue(ctx, taskKey, tc)
	logger := zerolog.Ctx(ctx).With().Str("task_id", tc.TaskID).Logger()
	return logger.WithContext(ctx)
}

// FromContext returns the task attached to ctx, or an "unknown" task.
func FromContext(ctx context.Context) *TaskContext {
	if tc, ok := ctx.Value(taskKey).(*TaskContext); ok {
		return tc
	}
	return &TaskContext{
		TaskID:    "unknown",
		StartTime: time.Now(),
	}
}

// TaskID is a shorthand for FromContext(ctx).TaskID.
func TaskID(ctx context.Context) string {
	return FromContext(ctx).TaskID
}

// RequestError wraps an error with the task it happened in
type RequestError struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError tags err with the task id from ctx
func NewRequestError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RequestError{
		TaskID: TaskID(ctx),
		Err:    err,
	}
}

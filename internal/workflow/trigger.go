package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flicket/backend/internal/models"
	"github.com/hibiken/asynq"
)

// Queue is the asynq queue generation runs are enqueued on
const Queue = "generation"

// RunTimeout bounds a single attempt of a generation run
const RunTimeout = 5 * time.Minute

// TaskType returns the asynq task type of a workflow
func TaskType(w models.Workflow) string {
	return "workflow:" + string(w)
}

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Trigger enqueues generation workflows
type Trigger struct {
	client Enqueuer
}

// NewTrigger creates a new workflow trigger
func NewTrigger(client Enqueuer) *Trigger {
	return &Trigger{client: client}
}

// Trigger enqueues one run of workflow under runID with the given retry budget
func (t *Trigger) Trigger(ctx context.Context, runID string, workflow models.Workflow, payload models.WorkflowPayload, retries int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	task := asynq.NewTask(TaskType(workflow), body)
	_, err = t.client.EnqueueContext(ctx, task,
		asynq.TaskID(runID),
		asynq.Queue(Queue),
		asynq.MaxRetry(retries),
		asynq.Timeout(RunTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s workflow: %w", workflow, err)
	}

	return nil
}

// ParsePayload decodes the payload of a workflow task
func ParsePayload(task *asynq.Task) (models.WorkflowPayload, error) {
	var payload models.WorkflowPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to parse workflow payload: %w", err)
	}
	if payload.UserID == "" || payload.VideoID == "" {
		return payload, fmt.Errorf("workflow payload requires userId and videoId")
	}
	return payload, nil
}

package models

import "time"

// Workflow names an asynchronous generation job
type Workflow string

const (
	WorkflowTitle       Workflow = "title"
	WorkflowDescription Workflow = "description"
	WorkflowThumbnail   Workflow = "thumbnail"
)

// GenerationRunStatus represents the state of a workflow run
type GenerationRunStatus string

const (
	GenerationRunStatusQueued    GenerationRunStatus = "queued"
	GenerationRunStatusCompleted GenerationRunStatus = "completed"
	GenerationRunStatusFailed    GenerationRunStatus = "failed"
)

// GenerationRun records one triggered workflow run, keyed by run id
type GenerationRun struct {
	ID        string              `json:"id" db:"id"`
	Workflow  Workflow            `json:"workflow" db:"workflow"`
	VideoID   string              `json:"videoId" db:"video_id"`
	UserID    string              `json:"userId" db:"user_id"`
	Status    GenerationRunStatus `json:"status" db:"status"`
	Error     *string             `json:"error" db:"error"`
	CreatedAt time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time           `json:"updatedAt" db:"updated_at"`
}

// WorkflowPayload is the body handed to a workflow run
type WorkflowPayload struct {
	UserID  string `json:"userId"`
	VideoID string `json:"videoId"`
	Prompt  string `json:"prompt,omitempty"`
}

// GenerateThumbnailRequest is the body of the thumbnail generation procedure
type GenerateThumbnailRequest struct {
	Prompt string `json:"prompt"`
}

// MinThumbnailPromptLength is the shortest accepted thumbnail prompt, in characters
const MinThumbnailPromptLength = 10

// WorkflowRetries is the retry budget of every generation run
const WorkflowRetries = 3

// TriggerResponse is returned by the generation procedures
type TriggerResponse struct {
	WorkflowRunID string `json:"workflowRunId"`
}

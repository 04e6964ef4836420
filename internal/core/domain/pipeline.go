package domain

import "time"

// IngestionTrigger is the job input published when a document upload
// completes. DatasetID may be absent on stale or partially propagated
// events; the orchestrator falls back to the document record.
type IngestionTrigger struct {
	DocumentID string  `json:"document_id"`
	TenantID   string  `json:"tenant_id"`
	DatasetID  *string `json:"dataset_id,omitempty"`
	UserID     string  `json:"user_id"`
	Filename   string  `json:"filename"`
	FileType   string  `json:"file_type"`
	FilePath   string  `json:"file_path"`
}

// IngestionOutcome summarizes a successful run.
type IngestionOutcome struct {
	DocumentID    string `json:"document_id"`
	ChunkCount    int    `json:"chunk_count"`
	AutoApproved  int    `json:"auto_approved"`
	PendingReview int    `json:"pending_review"`
}

// FailureContext carries everything the terminal failure handler needs,
// so it never has to re-parse the original trigger payload.
type FailureContext struct {
	DocumentID string
	TenantID   string
	Filename   string
	Step       PipelineStep
	Err        error
}

type StepStatus string

const (
	StepStarted   StepStatus = "started"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ProcessingLogEntry records one step of one run. Entries are append-only
// within a run and cleared at the start of every fresh reprocessing
// attempt, so the log always reflects the latest run only.
type ProcessingLogEntry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	DocumentID   string         `json:"document_id"`
	Step         PipelineStep   `json:"step"`
	Status       StepStatus     `json:"status"`
	Message      string         `json:"message,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Duration     time.Duration  `json:"duration_ms"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Checkpoint memoizes a completed step's result so a re-entered job
// resumes at the first uncompleted step instead of restarting.
type Checkpoint struct {
	DocumentID string
	Step       PipelineStep
	Payload    []byte
	CreatedAt  time.Time
}

// ReviewNotification is sent once per run when at least one chunk needs
// human review.
type ReviewNotification struct {
	Type         string `json:"type"`
	TenantID     string `json:"tenant_id"`
	DocumentID   string `json:"document_id"`
	PendingCount int    `json:"pending_count"`
	Message      string `json:"message"`
}

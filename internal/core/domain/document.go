package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReviewing  DocumentStatus = "reviewing"
	StatusApproved   DocumentStatus = "approved"
	StatusFailed     DocumentStatus = "failed"
)

type PipelineStep string

const (
	StepParsing           PipelineStep = "parsing"
	StepChunking          PipelineStep = "chunking"
	StepContextGeneration PipelineStep = "context_generation"
	StepEmbedding         PipelineStep = "embedding"
	StepQualityCheck      PipelineStep = "quality_check"
)

// PipelineSteps lists every step in execution order.
var PipelineSteps = []PipelineStep{
	StepParsing,
	StepChunking,
	StepContextGeneration,
	StepEmbedding,
	StepQualityCheck,
}

// Document is a tenant-scoped source file tracked through ingestion.
// A nil DatasetID means the document lives in the tenant's library,
// unassigned to any dataset.
type Document struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	DatasetID       *string        `json:"dataset_id,omitempty"`
	Filename        string         `json:"filename"`
	StoragePath     string         `json:"storage_path"`
	FileType        string         `json:"file_type"`
	SizeBytes       int64          `json:"size_bytes"`
	Status          DocumentStatus `json:"status"`
	ProgressStep    PipelineStep   `json:"progress_step,omitempty"`
	ProgressPercent int            `json:"progress_percent"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

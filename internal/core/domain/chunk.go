package domain

import "time"

type ChunkStatus string

const (
	ChunkPending  ChunkStatus = "pending"
	ChunkApproved ChunkStatus = "approved"
	ChunkRejected ChunkStatus = "rejected"
	ChunkModified ChunkStatus = "modified"
)

// AutoApproveThreshold is the fixed quality score at or above which a
// chunk becomes searchable without human review. It is deliberately a
// platform constant, not a per-tenant setting.
const AutoApproveThreshold = 85.0

// Chunk is one bounded fragment of a document, individually scored and
// embedded. DatasetID is a denormalized copy of the owning document's
// dataset id and must always match it for active chunks.
type Chunk struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	DocumentID    string      `json:"document_id"`
	DatasetID     *string     `json:"dataset_id,omitempty"`
	Index         int         `json:"chunk_index"`
	Content       string      `json:"content"`
	Embedding     []float32   `json:"-"`
	QualityScore  float64     `json:"quality_score"`
	Status        ChunkStatus `json:"status"`
	AutoApproved  bool        `json:"auto_approved"`
	ContextPrefix string      `json:"context_prefix,omitempty"`
	Version       int         `json:"version"`
	Active        bool        `json:"active"`
	CreatedAt     time.Time   `json:"created_at"`
}

// GradeScore classifies a provisional quality score against the
// auto-approval threshold.
func GradeScore(score float64) (ChunkStatus, bool) {
	if score >= AutoApproveThreshold {
		return ChunkApproved, true
	}
	return ChunkPending, false
}

// Fragment is the segmenter's output: an ordered slice of the source
// text with a provisional quality score in [0,100]. The scoring formula
// is owned by the segmenter; consumers rely only on the range.
type Fragment struct {
	Index        int
	Content      string
	QualityScore float64
	Metadata     FragmentMetadata
}

type FragmentMetadata struct {
	StartOffset int  `json:"start_offset"`
	EndOffset   int  `json:"end_offset"`
	WordCount   int  `json:"word_count"`
	HasHeading  bool `json:"has_heading"`
}

// ChunkContext is the enricher's per-fragment result: a short prefix
// describing how the fragment relates to the whole document.
type ChunkContext struct {
	ChunkIndex    int
	ContextPrefix string
	Prompt        string
}

// SegmentConfig bounds the segmenter's output fragments.
type SegmentConfig struct {
	MaxChunkSize      int
	Overlap           int
	PreserveStructure bool
}

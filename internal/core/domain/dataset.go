package domain

import "time"

// Dataset is a tenant-owned named collection of documents. Its counters
// are derived state: they are recomputed from authoritative counts after
// each ingestion rather than incremented, so concurrent ingestions into
// the same dataset converge instead of drifting.
type Dataset struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	StorageBytes  int64     `json:"storage_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

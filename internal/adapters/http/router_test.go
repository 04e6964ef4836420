package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
	"github.com/ragline/knowledge-ingest/internal/core/ports"
)

type stubUploader struct {
	got  ports.UploadInput
	doc  *domain.Document
	err  error
	body string
}

func (s *stubUploader) Upload(_ context.Context, in ports.UploadInput) (*domain.Document, error) {
	s.got = in
	if in.Body != nil {
		data, _ := io.ReadAll(in.Body)
		s.body = string(data)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type stubDocRepo struct {
	doc *domain.Document
	err error
}

func (s *stubDocRepo) Create(context.Context, *domain.Document) error { return nil }

func (s *stubDocRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.doc == nil || s.doc.ID != id || s.doc.TenantID != tenantID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	return s.doc, nil
}

func (s *stubDocRepo) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

func (s *stubDocRepo) UpdateProgress(context.Context, string, domain.PipelineStep, int) error {
	return nil
}

type stubChunkRepo struct {
	chunks []domain.Chunk
	err    error
}

func (s *stubChunkRepo) InsertBatches(context.Context, []domain.Chunk) error { return nil }

func (s *stubChunkRepo) DeleteByDocument(context.Context, string) (int64, error) { return 0, nil }

func (s *stubChunkRepo) ListByDocument(context.Context, string, string) ([]domain.Chunk, error) {
	return s.chunks, s.err
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadDocumentEndpoint(t *testing.T) {
	uploader := &stubUploader{doc: &domain.Document{
		ID:       "doc-1",
		TenantID: "tenant-1",
		Filename: "notes.txt",
		Status:   domain.StatusUploaded,
	}}
	router := NewRouter(uploader, &stubDocRepo{}, &stubChunkRepo{}, nil)

	body, contentType := multipartUpload(t, map[string]string{"dataset_id": "ds-1"}, "notes.txt", "hello world")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if uploader.got.TenantID != "tenant-1" || uploader.got.UserID != "user-1" {
		t.Errorf("identity fields not propagated: %+v", uploader.got)
	}
	if uploader.got.DatasetID == nil || *uploader.got.DatasetID != "ds-1" {
		t.Errorf("dataset_id form field not propagated")
	}
	if uploader.got.Filename != "notes.txt" {
		t.Errorf("filename = %q", uploader.got.Filename)
	}
	if uploader.body != "hello world" {
		t.Errorf("file content = %q", uploader.body)
	}

	var resp domain.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "doc-1" {
		t.Errorf("response document id = %q", resp.ID)
	}
}

func TestUploadRequiresTenantHeader(t *testing.T) {
	router := NewRouter(&stubUploader{}, &stubDocRepo{}, &stubChunkRepo{}, nil)

	body, contentType := multipartUpload(t, nil, "a.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRequiresFilePart(t *testing.T) {
	router := NewRouter(&stubUploader{}, &stubDocRepo{}, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "tenant-1")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetDocumentEndpoint(t *testing.T) {
	docs := &stubDocRepo{doc: &domain.Document{
		ID:       "doc-1",
		TenantID: "tenant-1",
		Status:   domain.StatusReviewing,
	}}
	router := NewRouter(&stubUploader{}, docs, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp domain.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.StatusReviewing {
		t.Errorf("status = %s", resp.Status)
	}
}

func TestGetDocumentIsTenantScoped(t *testing.T) {
	docs := &stubDocRepo{doc: &domain.Document{ID: "doc-1", TenantID: "tenant-1"}}
	router := NewRouter(&stubUploader{}, docs, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("X-Tenant-Id", "tenant-2")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, cross-tenant read must 404", rec.Code)
	}
}

func TestListChunksEndpoint(t *testing.T) {
	docs := &stubDocRepo{doc: &domain.Document{ID: "doc-1", TenantID: "tenant-1"}}
	chunks := &stubChunkRepo{chunks: []domain.Chunk{
		{ID: "c-0", DocumentID: "doc-1", Index: 0, Status: domain.ChunkApproved},
		{ID: "c-1", DocumentID: "doc-1", Index: 1, Status: domain.ChunkPending},
	}}
	router := NewRouter(&stubUploader{}, docs, chunks, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1/chunks", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DocumentID string         `json:"document_id"`
		Count      int            `json:"count"`
		Chunks     []domain.Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Chunks) != 2 {
		t.Fatalf("unexpected chunk listing: %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := NewRouter(&stubUploader{}, &stubDocRepo{}, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc-1", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := NewRouter(&stubUploader{}, &stubDocRepo{}, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router := NewRouter(&stubUploader{}, &stubDocRepo{}, &stubChunkRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("request id not echoed: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("request id not generated")
	}
}

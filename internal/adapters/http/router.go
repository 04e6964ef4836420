package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ragline/knowledge-ingest/internal/core/ports"
	"github.com/ragline/knowledge-ingest/internal/observability/metrics"
)

const maxUploadBytes = 100 << 20

// Router exposes the admin API of the ingestion service. Every tenant
// scoped route requires the X-Tenant-Id header; there is no implicit
// default tenant.
type Router struct {
	uploader ports.DocumentUploader
	docs     ports.DocumentRepository
	chunks   ports.ChunkRepository
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	uploader ports.DocumentUploader,
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		uploader: uploader,
		docs:     docs,
		chunks:   chunks,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/documents", rt.instrument("/v1/documents", http.HandlerFunc(rt.uploadDocument)))
	mux.Handle("/v1/documents/", rt.instrument("/v1/documents/{id}", http.HandlerFunc(rt.documentSubtree)))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) instrument(path string, next http.Handler) http.Handler {
	if rt.metrics == nil {
		return next
	}
	return rt.metrics.Middleware("api", path, next)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenantID := tenantFromRequest(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-Id header is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	var datasetID *string
	if v := strings.TrimSpace(r.FormValue("dataset_id")); v != "" {
		datasetID = &v
	}

	doc, err := rt.uploader.Upload(r.Context(), ports.UploadInput{
		TenantID:  tenantID,
		DatasetID: datasetID,
		UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
		Filename:  fileHeader.Filename,
		FileType:  fileHeader.Header.Get("Content-Type"),
		Size:      fileHeader.Size,
		Body:      file,
	})
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// documentSubtree routes /v1/documents/{id} and /v1/documents/{id}/chunks.
func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenantID := tenantFromRequest(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "X-Tenant-Id header is required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch tail {
	case "":
		rt.getDocument(w, r, tenantID, id)
	case "chunks":
		rt.listChunks(w, r, tenantID, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, tenantID, id string) {
	doc, err := rt.docs.GetByID(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) listChunks(w http.ResponseWriter, r *http.Request, tenantID, id string) {
	if _, err := rt.docs.GetByID(r.Context(), tenantID, id); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	chunks, err := rt.chunks.ListByDocument(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"count":       len(chunks),
		"chunks":      chunks,
	})
}

func tenantFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

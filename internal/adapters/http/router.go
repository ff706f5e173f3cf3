package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/observability/metrics"
)

const (
	multipartMemory = 8 << 20
	queueWait       = 2 * time.Second
)

type Router struct {
	cfg      config.Config
	uploader ports.DocumentUploader
	queries  ports.DocumentQueryService
	catalog  ports.SessionCatalog
	metrics  *metrics.Metrics
}

func NewRouter(
	cfg config.Config,
	uploader ports.DocumentUploader,
	queries ports.DocumentQueryService,
	catalog ports.SessionCatalog,
) *Router {
	return &Router{
		cfg:      cfg,
		uploader: uploader,
		queries:  queries,
		catalog:  catalog,
	}
}

func (rt *Router) WithMetrics(m *metrics.Metrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	r.Route("/api/rag", func(api chi.Router) {
		api.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		api.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, queueWait)
		})

		api.Post("/upload", rt.upload)
		api.Post("/query", rt.query)
		api.Get("/sessions", rt.listSessions)
		api.Get("/debug/logs", rt.debugLogs)
		api.Get("/debug/session/{sessionID}", rt.debugSession)
	})
	return r
}

func (rt *Router) allowedOrigins() []string {
	if len(rt.cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return rt.cfg.CORSAllowedOrigins
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form is required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Indexing finishes even if the client goes away; the session stays usable.
	ctx := context.WithoutCancel(r.Context())
	result, err := rt.uploader.Upload(ctx, header.Filename, contentType(header.Header.Get("Content-Type"), header.Filename), file)
	if err != nil {
		rt.fail(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := rt.queries.Query(context.WithoutCancel(r.Context()), req.SessionID, req.Question)
	if err != nil {
		rt.fail(w, r, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sessionSummary struct {
	Filename   string              `json:"filename"`
	Kind       domain.DocumentKind `json:"doc_kind"`
	ChunkCount int                 `json:"chunk_count"`
}

func (rt *Router) listSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := rt.catalog.ListSessions()
	out := make(map[string]sessionSummary, len(sessions))
	for _, s := range sessions {
		out[s.ID] = sessionSummary{Filename: s.Filename, Kind: s.Kind, ChunkCount: s.ChunkCount}
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) debugLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs := rt.catalog.RecentLogs(limit)
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (rt *Router) debugSession(w http.ResponseWriter, r *http.Request) {
	diag, err := rt.catalog.InspectSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		rt.fail(w, r, "inspect session", err)
		return
	}
	writeJSON(w, http.StatusOK, diag)
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"operation", operation,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", attrs...)
	} else {
		slog.Warn("request_failed", attrs...)
	}
	writeError(w, status, err.Error())
}

// contentType falls back to the filename extension when the client sent no
// useful part type.
func contentType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return declared
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/usecase"
	"github.com/kirillkom/docqa/internal/observability/metrics"
	"github.com/kirillkom/docqa/internal/observability/telemetry"
)

type uploaderFake struct {
	err      error
	gotName  string
	gotType  string
	gotBytes int
}

func (f *uploaderFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.UploadResult, error) {
	data, _ := io.ReadAll(body)
	f.gotName, f.gotType, f.gotBytes = filename, mimeType, len(data)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UploadResult{SessionID: "s-1", Filename: filename, Kind: domain.KindPDF, PageCount: 2, ChunkCount: 3, PreviewText: "[PAGE 1]"}, nil
}

type queryFake struct {
	err error
}

func (f queryFake) Query(_ context.Context, sessionID, question string) (*domain.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QueryResult{
		Answer:   "Plants make sugar.",
		Category: domain.CategoryFactual,
		Filename: "leaf.pdf",
		Debug:    domain.QueryDebug{BackendUsed: "Ollama/mistral:latest", ChunkCount: 2},
	}, nil
}

type catalogFake struct {
	sessions []domain.Session
	logs     []domain.LogEntry
	limit    int
}

func (f *catalogFake) ListSessions() []domain.Session { return f.sessions }

func (f *catalogFake) InspectSession(id string) (*domain.SessionDiagnostics, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return &domain.SessionDiagnostics{Session: s, FeatureCount: 10, SampleChunks: []string{"chunk"}}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
}

func (f *catalogFake) RecentLogs(limit int) []domain.LogEntry {
	f.limit = limit
	return f.logs
}

func newTestHandler(cfg config.Config, up *uploaderFake, q queryFake, cat *catalogFake) http.Handler {
	if up == nil {
		up = &uploaderFake{}
	}
	if cat == nil {
		cat = &catalogFake{}
	}
	return NewRouter(cfg, up, q, cat).WithMetrics(metrics.New("docqa-test")).Handler()
}

func multipartBody(t *testing.T, filename, partType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if partType != "" {
		header.Set("Content-Type", partType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadReturnsSession(t *testing.T) {
	up := &uploaderFake{}
	handler := newTestHandler(config.Config{}, up, queryFake{}, nil)

	body, ct := multipartBody(t, "leaf.pdf", "application/octet-stream", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/rag/upload", body)
	req.Header.Set("Content-Type", ct)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.UploadResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != "s-1" || got.ChunkCount != 3 {
		t.Fatalf("unexpected response %+v", got)
	}
	if up.gotType != "application/pdf" || up.gotName != "leaf.pdf" || up.gotBytes != 8 {
		t.Fatalf("unexpected upload call name=%q type=%q bytes=%d", up.gotName, up.gotType, up.gotBytes)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadMapsUnsupportedTypeTo415(t *testing.T) {
	up := &uploaderFake{err: fmt.Errorf("%w: application/zip", domain.ErrUnsupportedDocumentType)}
	handler := newTestHandler(config.Config{}, up, queryFake{}, nil)

	body, ct := multipartBody(t, "bundle.zip", "application/zip", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/api/rag/upload", body)
	req.Header.Set("Content-Type", ct)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 64}, nil, queryFake{}, nil)

	body, ct := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 1024))
	req := httptest.NewRequest(http.MethodPost, "/api/rag/upload", body)
	req.Header.Set("Content-Type", ct)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/rag/upload", bytes.NewBufferString("nope"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

type failingTier struct {
	name string
	err  error
}

func (f failingTier) Name() string { return f.name }

func (f failingTier) Answer(context.Context, string, string) (string, time.Duration, error) {
	return "", time.Millisecond, f.err
}

func exhaustedChainError(t *testing.T) error {
	t.Helper()
	events := telemetry.NewRing(telemetry.DefaultCapacity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	chain := usecase.NewAnswerChain(events,
		failingTier{name: "Ollama/mistral:latest", err: domain.WrapError(domain.ErrTemporary, "ollama generate", errors.New("connection refused"))},
		failingTier{name: "Groq/llama-3.1-8b-instant", err: fmt.Errorf("%w: GROQ_API_KEY not set", domain.ErrInvalidInput)},
	)
	_, err := chain.Answer(context.Background(), "system", "What is photosynthesis?")
	if err == nil {
		t.Fatalf("expected exhausted chain")
	}
	return err
}

func TestQueryStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"unknown session", fmt.Errorf("%w: s-9", domain.ErrSessionNotFound), http.StatusNotFound},
		{"blank session", fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput), http.StatusBadRequest},
		{"exhausted", fmt.Errorf("answer question: %w", domain.ErrBackendExhausted), http.StatusBadGateway},
		{"exhausted with tier kinds", exhaustedChainError(t), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "index", errors.New("pool closed")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		handler := newTestHandler(config.Config{}, nil, queryFake{err: tc.err}, nil)
		payload, _ := json.Marshal(queryRequest{SessionID: "s-1", Question: "What is photosynthesis?"})
		req := httptest.NewRequest(http.MethodPost, "/api/rag/query", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, res.Code)
		}
	}
}

func TestQueryRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/rag/query", bytes.NewBufferString("{"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSessionsAndDebugEndpoints(t *testing.T) {
	cat := &catalogFake{
		sessions: []domain.Session{{ID: "s-1", Filename: "leaf.pdf", Kind: domain.KindPDF, ChunkCount: 4}},
		logs:     []domain.LogEntry{{Timestamp: time.Now(), Level: domain.LevelInfo, Tag: "UPLOAD", Message: "ok"}},
	}
	handler := newTestHandler(config.Config{}, nil, queryFake{}, cat)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rag/sessions", nil))
	var sessions map[string]sessionSummary
	if err := json.NewDecoder(res.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if sessions["s-1"].ChunkCount != 4 || sessions["s-1"].Kind != domain.KindPDF {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rag/debug/logs?limit=5", nil))
	var logs struct {
		Logs  []domain.LogEntry `json:"logs"`
		Count int               `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if logs.Count != 1 || cat.limit != 5 {
		t.Fatalf("unexpected logs response %+v (limit %d)", logs, cat.limit)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rag/debug/session/s-1", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rag/debug/session/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil, queryFake{}, nil)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !bytes.Contains(res.Body.Bytes(), []byte("docqa_http_requests_total")) {
		t.Fatalf("expected prometheus output, got %d", res.Code)
	}
}

func TestHandlerRecoversFromPanics(t *testing.T) {
	handler := NewRouter(config.Config{}, &uploaderFake{}, queryFake{}, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/rag/sessions", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from recovered panic, got %d", res.Code)
	}
}

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func TestObserversFeedCollectors(t *testing.T) {
	m := New("docqa-api")
	m.ObserveQuery(domain.CategoryFactual, "Groq/llama-3.1-8b-instant", 2, 900, time.Second)
	m.ObserveQuery(domain.CategoryFactual, domain.BackendNone, 0, 0, time.Millisecond)
	m.ObserveTier("Ollama/mistral:latest", "timeout", 3*time.Second)
	m.ObserveUpload(domain.KindPDF, "ok", 12)
	m.StartIndexBuild()
	m.FinishIndexBuild(time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.queriesTotal.WithLabelValues("docqa-api", "factual", "Groq/llama-3.1-8b-instant")); got != 1 {
		t.Fatalf("expected one query, got %v", got)
	}
	if got := testutil.ToFloat64(m.noContextTotal); got != 1 {
		t.Fatalf("expected one no-context query, got %v", got)
	}
	if got := testutil.ToFloat64(m.tierCallsTotal.WithLabelValues("docqa-api", "Ollama/mistral:latest", "timeout")); got != 1 {
		t.Fatalf("expected one timed out tier call, got %v", got)
	}
	if got := testutil.ToFloat64(m.uploadsTotal.WithLabelValues("docqa-api", "pdf", "ok")); got != 1 {
		t.Fatalf("expected one upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.indexBuilds.WithLabelValues("docqa-api", "error")); got != 1 {
		t.Fatalf("expected one failed build, got %v", got)
	}
	if got := testutil.ToFloat64(m.indexesInFlight); got != 0 {
		t.Fatalf("expected no builds in flight, got %v", got)
	}
}

func TestMiddlewareRecordsNormalizedPath(t *testing.T) {
	m := New("docqa-api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rag/debug/session/abc", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("docqa-api", http.MethodGet, "/api/rag/debug/session/{session_id}", "404"))
	if got != 1 {
		t.Fatalf("expected one request sample, got %v", got)
	}

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(scrape.Body)
	if !strings.Contains(string(body), "docqa_http_requests_total") {
		t.Fatalf("expected http metrics in scrape output")
	}
}

func TestMiddlewareDefaultsToOKAndKeepsFlusher(t *testing.T) {
	m := New("docqa-api")
	flushable := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("docqa-api", http.MethodGet, "/healthz", "200")); got != 1 {
		t.Fatalf("expected implicit 200 sample, got %v", got)
	}
	if !flushable {
		t.Fatalf("wrapped writer must still implement http.Flusher")
	}
	if got := testutil.ToFloat64(m.requestInFlight); got != 0 {
		t.Fatalf("expected no requests in flight, got %v", got)
	}
}

package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/infrastructure/chunking"
	"github.com/kirillkom/docqa/internal/infrastructure/index/workerpool"
	"github.com/kirillkom/docqa/internal/infrastructure/registry/memory"
	"github.com/kirillkom/docqa/internal/observability/telemetry"
)

var photosynthesisPages = []domain.PageDocument{
	{
		Text: "[PAGE 1]\nPhotosynthesis is the process by which green plants use sunlight, water and carbon dioxide " +
			"to produce glucose and oxygen. It takes place in the chloroplasts, where chlorophyll absorbs light energy.",
		Page:   1,
		Source: domain.KindPDF,
	},
	{
		Text: "[PAGE 2]\nThe light-dependent reactions split water and release oxygen. The Calvin cycle then fixes " +
			"carbon dioxide into sugar using ATP and NADPH produced by the light reactions.",
		Page:   2,
		Source: domain.KindPDF,
	},
}

type fakeExtractor struct {
	extraction domain.Extraction
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(context.Context, domain.DocumentKind, []byte) (domain.Extraction, error) {
	f.calls++
	return f.extraction, f.err
}

type fakeTier struct {
	name  string
	text  string
	err   error
	mu    sync.Mutex
	calls int
	last  string
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Answer(_ context.Context, system, _ string) (string, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = system
	if f.err != nil {
		return "", time.Millisecond, f.err
	}
	return f.text, time.Millisecond, nil
}

func (f *fakeTier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingLedger struct {
	sessions []domain.Session
	err      error
}

func (r *recordingLedger) RecordSession(_ context.Context, s domain.Session) error {
	r.sessions = append(r.sessions, s)
	return r.err
}

type recordingPublisher struct {
	ids []string
}

func (r *recordingPublisher) PublishSessionIndexed(_ context.Context, s domain.Session) error {
	r.ids = append(r.ids, s.ID)
	return nil
}

type recordingTierObserver struct {
	outcomes []string
}

func (r *recordingTierObserver) ObserveTier(tier, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, tier+":"+outcome)
}

type harness struct {
	registry  *memory.Registry
	events    *telemetry.Ring
	extractor *fakeExtractor
	local     *fakeTier
	remote    *fakeTier
	ingest    *IngestDocumentUseCase
	query     *QueryUseCase
	catalog   *CatalogUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	events := telemetry.NewRing(telemetry.DefaultCapacity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry := memory.NewRegistry()
	builder, err := workerpool.NewBuilder(2, nil)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	t.Cleanup(builder.Close)

	extractor := &fakeExtractor{extraction: domain.Extraction{Pages: photosynthesisPages}}
	local := &fakeTier{name: "Ollama/mistral:latest", text: "Photosynthesis turns light into sugar."}
	remote := &fakeTier{name: "Groq/llama-3.1-8b-instant", text: "Plants convert sunlight into chemical energy."}

	chain := NewAnswerChain(events, local, remote)
	pipeline := NewPipeline(registry, chain, events, domain.DefaultContextBudget)

	return &harness{
		registry:  registry,
		events:    events,
		extractor: extractor,
		local:     local,
		remote:    remote,
		ingest:    NewIngestDocumentUseCase(extractor, chunking.NewSplitter(500, 100), builder, registry, events),
		query:     NewQueryUseCase(registry, pipeline, events),
		catalog:   NewCatalogUseCase(registry, events),
	}
}

type staticIndex struct {
	chunks []domain.Chunk
}

func (s staticIndex) Search(_ string, k int) []domain.Chunk { return s.Head(k) }

func (s staticIndex) Head(k int) []domain.Chunk {
	if k > len(s.chunks) {
		k = len(s.chunks)
	}
	return s.chunks[:k]
}

func (s staticIndex) Stats() domain.IndexStats {
	return domain.IndexStats{ChunkCount: len(s.chunks)}
}

func registerStatic(t *testing.T, registry ports.SessionRegistry, id string, texts ...string) {
	t.Helper()
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{Text: text, Page: 1, Source: domain.KindPDF}
	}
	err := registry.Insert(ports.IndexedSession{
		Session: domain.Session{ID: id, Filename: id + ".pdf", Kind: domain.KindPDF, ChunkCount: len(chunks), CreatedAt: time.Now()},
		Index:   staticIndex{chunks: chunks},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

var errTierDown = errors.New("connection refused")

package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	uploadTag       = "UPLOAD"
	previewChars    = 500
	defaultFilename = "document"
)

// IngestDocumentUseCase turns an uploaded file into a registered, queryable
// session: extract, chunk, index, register.
type IngestDocumentUseCase struct {
	extractor ports.DocumentExtractor
	chunker   ports.Chunker
	indexer   ports.IndexBuilder
	registry  ports.SessionRegistry
	events    ports.EventLog

	ledger    ports.SessionLedger
	publisher ports.SessionEventPublisher
	observer  ports.UploadObserver
	now       func() time.Time
}

func NewIngestDocumentUseCase(
	extractor ports.DocumentExtractor,
	chunker ports.Chunker,
	indexer ports.IndexBuilder,
	registry ports.SessionRegistry,
	events ports.EventLog,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		registry:  registry,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestDocumentUseCase) WithLedger(ledger ports.SessionLedger) *IngestDocumentUseCase {
	uc.ledger = ledger
	return uc
}

func (uc *IngestDocumentUseCase) WithPublisher(publisher ports.SessionEventPublisher) *IngestDocumentUseCase {
	uc.publisher = publisher
	return uc
}

func (uc *IngestDocumentUseCase) WithObserver(observer ports.UploadObserver) *IngestDocumentUseCase {
	uc.observer = observer
	return uc
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.UploadResult, error) {
	filename = displayName(filename)
	kind := domain.DetectKind(mimeType, filename)
	if kind == domain.KindUnsupported {
		uc.events.Warn(uploadTag, fmt.Sprintf("Rejected %s (%s)", filename, mimeType))
		uc.observe(kind, "unsupported", 0)
		return nil, fmt.Errorf("%w: %s. Use PDF or image", domain.ErrUnsupportedDocumentType, mimeType)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidInput)
	}
	uc.events.Info(uploadTag, fmt.Sprintf("Upload: %s (%s, %d bytes)", filename, mimeType, len(data)))

	extraction, err := uc.extractor.Extract(ctx, kind, data)
	if err != nil {
		uc.observe(kind, "failed", 0)
		return nil, fmt.Errorf("extract document: %w", err)
	}
	if extraction.Degraded {
		uc.events.Warn(uploadTag, domain.WrapError(domain.ErrExtractionDegraded, filename, fmt.Errorf("placeholder text substituted")).Error())
	}

	chunks := uc.chunker.SplitPages(extraction.Pages)
	index, err := uc.indexer.Build(ctx, chunks)
	if err != nil {
		uc.observe(kind, "failed", 0)
		return nil, fmt.Errorf("build index: %w", err)
	}
	stats := index.Stats()
	uc.events.Info("INDEX", fmt.Sprintf("Indexed %d chunks, %d features", stats.ChunkCount, stats.FeatureCount))

	session := domain.Session{
		ID:         uuid.NewString(),
		Filename:   filename,
		Kind:       kind,
		PageCount:  len(extraction.Pages),
		ChunkCount: len(chunks),
		Degraded:   extraction.Degraded,
		CreatedAt:  uc.now(),
	}
	if err := uc.registry.Insert(ports.IndexedSession{Session: session, Index: index}); err != nil {
		uc.observe(kind, "failed", 0)
		return nil, fmt.Errorf("register session: %w", err)
	}
	uc.announce(ctx, session)
	uc.observe(kind, "ok", len(chunks))
	uc.events.Info(uploadTag, fmt.Sprintf("OK %s -> %d pages, %d chunks indexed", filename, session.PageCount, session.ChunkCount))

	preview := ""
	if len(extraction.Pages) > 0 {
		preview = domain.Preview(extraction.Pages[0].Text, previewChars)
	}
	return &domain.UploadResult{
		SessionID:   session.ID,
		Filename:    session.Filename,
		Kind:        session.Kind,
		PageCount:   session.PageCount,
		ChunkCount:  session.ChunkCount,
		PreviewText: preview,
		Degraded:    session.Degraded,
	}, nil
}

// announce records the session in the optional ledger and event stream.
// Failures are logged; the in-memory session is already live.
func (uc *IngestDocumentUseCase) announce(ctx context.Context, session domain.Session) {
	if uc.ledger != nil {
		if err := uc.ledger.RecordSession(ctx, session); err != nil {
			uc.events.Warn(uploadTag, "ledger write failed: "+err.Error())
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishSessionIndexed(ctx, session); err != nil {
			uc.events.Warn(uploadTag, "publish session event failed: "+err.Error())
		}
	}
}

func (uc *IngestDocumentUseCase) observe(kind domain.DocumentKind, status string, chunks int) {
	if uc.observer != nil {
		uc.observer.ObserveUpload(kind, status, chunks)
	}
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultFilename
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return defaultFilename
	}
	return base
}

package ports

import (
	"context"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentExtractor turns raw upload bytes into ordered page documents.
type DocumentExtractor interface {
	Extract(ctx context.Context, kind domain.DocumentKind, data []byte) (domain.Extraction, error)
}

// OCR recognizes the text of a single PDF page.
type OCR interface {
	Recognize(ctx context.Context, document []byte, page int) (string, error)
}

// VisionBackend describes an image with a vision-capable model.
type VisionBackend interface {
	Name() string
	Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, time.Duration, error)
}

// Chunker splits page documents into overlapping retrieval chunks.
type Chunker interface {
	SplitPages(pages []domain.PageDocument) []domain.Chunk
}

// ChunkIndex is an immutable search structure over one session's chunks.
type ChunkIndex interface {
	Search(question string, k int) []domain.Chunk
	Head(k int) []domain.Chunk
	Stats() domain.IndexStats
}

// IndexBuilder constructs a ChunkIndex away from the calling goroutine.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []domain.Chunk) (ChunkIndex, error)
}

// IndexedSession is the registry entry: session metadata plus its owned index.
type IndexedSession struct {
	Session domain.Session
	Index   ChunkIndex
}

// SessionRegistry is an insert-only map from session id to IndexedSession.
type SessionRegistry interface {
	Insert(entry IndexedSession) error
	Get(id string) (IndexedSession, bool)
	List() []IndexedSession
	Len() int
}

// AnswerTier is one answer-generation service in the fallback chain.
type AnswerTier interface {
	Name() string
	Answer(ctx context.Context, system, question string) (string, time.Duration, error)
}

// AnswerBackend answers with the first tier that succeeds.
type AnswerBackend interface {
	Answer(ctx context.Context, system, question string) (domain.Generation, error)
}

// EventLog records diagnostic events for the telemetry ring.
type EventLog interface {
	Info(tag, message string)
	Warn(tag, message string)
	Error(tag, message string)
	Recent(limit int) []domain.LogEntry
}

// SessionLedger keeps an audit row per created session.
type SessionLedger interface {
	RecordSession(ctx context.Context, session domain.Session) error
}

// SessionEventPublisher announces newly indexed sessions.
type SessionEventPublisher interface {
	PublishSessionIndexed(ctx context.Context, session domain.Session) error
}

// TierObserver receives per-tier call outcomes.
type TierObserver interface {
	ObserveTier(tier, outcome string, elapsed time.Duration)
}

// UploadObserver receives per-upload outcomes.
type UploadObserver interface {
	ObserveUpload(kind domain.DocumentKind, status string, chunks int)
}

// QueryObserver receives per-query outcomes.
type QueryObserver interface {
	ObserveQuery(category domain.Category, backend string, chunks, contextChars int, elapsed time.Duration)
}

package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentUploader is the inbound contract for turning an upload into a queryable session.
type DocumentUploader interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.UploadResult, error)
}

// DocumentQueryService answers questions about one uploaded document.
type DocumentQueryService interface {
	Query(ctx context.Context, sessionID, question string) (*domain.QueryResult, error)
}

// SessionCatalog is the read model over live sessions and diagnostics.
type SessionCatalog interface {
	ListSessions() []domain.Session
	InspectSession(id string) (*domain.SessionDiagnostics, error)
	RecentLogs(limit int) []domain.LogEntry
}

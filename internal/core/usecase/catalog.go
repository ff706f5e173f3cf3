package usecase

import (
	"fmt"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	sampleChunks     = 3
	sampleChunkChars = 200
	maxLogEntries    = 100
)

// CatalogUseCase is the read side over the registry and the telemetry ring.
type CatalogUseCase struct {
	registry ports.SessionRegistry
	events   ports.EventLog
}

func NewCatalogUseCase(registry ports.SessionRegistry, events ports.EventLog) *CatalogUseCase {
	return &CatalogUseCase{registry: registry, events: events}
}

func (uc *CatalogUseCase) ListSessions() []domain.Session {
	entries := uc.registry.List()
	out := make([]domain.Session, len(entries))
	for i, entry := range entries {
		out[i] = entry.Session
	}
	return out
}

func (uc *CatalogUseCase) InspectSession(id string) (*domain.SessionDiagnostics, error) {
	entry, ok := uc.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	head := entry.Index.Head(sampleChunks)
	samples := make([]string, len(head))
	for i, chunk := range head {
		samples[i] = domain.Preview(chunk.Text, sampleChunkChars)
	}
	return &domain.SessionDiagnostics{
		Session:      entry.Session,
		FeatureCount: entry.Index.Stats().FeatureCount,
		SampleChunks: samples,
	}, nil
}

// RecentLogs returns at most 100 entries, newest first.
func (uc *CatalogUseCase) RecentLogs(limit int) []domain.LogEntry {
	if limit <= 0 || limit > maxLogEntries {
		limit = maxLogEntries
	}
	return uc.events.Recent(limit)
}

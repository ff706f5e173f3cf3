package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

type QueryUseCase struct {
	registry ports.SessionRegistry
	pipeline *Pipeline
	events   ports.EventLog
	observer ports.QueryObserver
}

func NewQueryUseCase(registry ports.SessionRegistry, pipeline *Pipeline, events ports.EventLog) *QueryUseCase {
	return &QueryUseCase{
		registry: registry,
		pipeline: pipeline,
		events:   events,
	}
}

func (uc *QueryUseCase) WithObserver(observer ports.QueryObserver) *QueryUseCase {
	uc.observer = observer
	return uc
}

func (uc *QueryUseCase) Query(ctx context.Context, sessionID, question string) (*domain.QueryResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}
	entry, ok := uc.registry.Get(sessionID)
	if !ok {
		uc.events.Warn("QUERY", "Unknown session "+sessionID)
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}

	start := time.Now()
	state, err := uc.pipeline.Run(ctx, sessionID, question)
	total := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	if uc.observer != nil {
		uc.observer.ObserveQuery(state.Category, state.BackendUsed, state.ChunkCount, state.ContextChars, total)
	}
	uc.events.Info("QUERY", fmt.Sprintf("Done in %.2fs via %s", total.Seconds(), state.BackendUsed))

	return &domain.QueryResult{
		Answer:   state.Answer,
		Category: state.Category,
		Filename: entry.Session.Filename,
		Debug: domain.QueryDebug{
			BackendUsed:      state.BackendUsed,
			ChunkCount:       state.ChunkCount,
			ContextCharCount: state.ContextChars,
			TotalElapsed:     roundSeconds(total),
			ClassifyElapsed:  roundSeconds(state.ClassifyElapsed),
			RetrieveElapsed:  roundSeconds(state.RetrieveElapsed),
			SynthElapsed:     roundSeconds(state.SynthesizeElapsed),
		},
	}, nil
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond).Milliseconds()) / 1000
}

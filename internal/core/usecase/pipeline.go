package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// Pipeline answers one question in three strictly ordered stages:
// classify, retrieve, synthesize. The state carries only the session id;
// the index is fetched from the registry during retrieval.
type Pipeline struct {
	registry ports.SessionRegistry
	backend  ports.AnswerBackend
	events   ports.EventLog
	budget   int
}

func NewPipeline(registry ports.SessionRegistry, backend ports.AnswerBackend, events ports.EventLog, contextBudget int) *Pipeline {
	if contextBudget <= 0 {
		contextBudget = domain.DefaultContextBudget
	}
	return &Pipeline{
		registry: registry,
		backend:  backend,
		events:   events,
		budget:   contextBudget,
	}
}

func (p *Pipeline) Run(ctx context.Context, sessionID, question string) (domain.QueryState, error) {
	state := domain.QueryState{SessionID: sessionID, Question: question}
	p.classify(&state)
	p.retrieve(&state)
	if err := p.synthesize(ctx, &state); err != nil {
		return state, err
	}
	return state, nil
}

func (p *Pipeline) classify(state *domain.QueryState) {
	start := time.Now()
	state.Category = Classify(state.Question)
	state.ClassifyElapsed = time.Since(start)
	p.events.Info("CLASSIFY", fmt.Sprintf("Q: '%s' -> %s", domain.Preview(state.Question, 60), state.Category))
}

func (p *Pipeline) retrieve(state *domain.QueryState) {
	start := time.Now()
	defer func() { state.RetrieveElapsed = time.Since(start) }()

	entry, ok := p.registry.Get(state.SessionID)
	if !ok {
		p.events.Warn("RETRIEVE", "FAIL Session not found")
		state.Context = domain.SessionNotFoundContext
		state.ChunkCount = 0
		state.ContextChars = 0
		return
	}

	k := retrievalDepth(state.Category)
	chunks := entry.Index.Search(state.Question, k)
	joined := joinChunks(chunks)
	if strings.TrimSpace(joined) == "" {
		p.events.Warn("RETRIEVE", fmt.Sprintf("WARN Zero scores - using first %d raw chunks as fallback", k))
		chunks = entry.Index.Head(k)
		joined = joinChunks(chunks)
	}

	if n := utf8.RuneCountInString(joined); n > p.budget {
		p.events.Warn("RETRIEVE", fmt.Sprintf("WARN Trimming context %d -> %d chars", n, p.budget))
		joined, _ = domain.ClipToBudget(joined, p.budget, domain.TrimMarker)
	}

	state.Context = joined
	state.ChunkCount = len(chunks)
	state.ContextChars = utf8.RuneCountInString(joined)
	p.events.Info("RETRIEVE", fmt.Sprintf("OK %d chunk(s), %d chars", state.ChunkCount, state.ContextChars))
}

func (p *Pipeline) synthesize(ctx context.Context, state *domain.QueryState) error {
	start := time.Now()
	defer func() { state.SynthesizeElapsed = time.Since(start) }()

	if state.Context == domain.SessionNotFoundContext || strings.TrimSpace(state.Context) == "" {
		state.Answer = noContextAnswer
		state.BackendUsed = domain.BackendNone
		return nil
	}

	system := buildSystemInstruction(state.Category, state.Context)
	gen, err := p.backend.Answer(ctx, system, state.Question)
	if err != nil {
		p.events.Error("SYNTHESIZE", "FAIL "+err.Error())
		return err
	}
	state.Answer = gen.Text
	state.BackendUsed = gen.Backend
	p.events.Info("SYNTHESIZE", fmt.Sprintf("OK %s - %d chars (%.2fs)", gen.Backend, utf8.RuneCountInString(gen.Text), gen.Elapsed.Seconds()))
	return nil
}

func joinChunks(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, contextSeparator)
}

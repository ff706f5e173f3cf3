package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const DefaultCapacity = 100

// Ring keeps the most recent tagged events in a fixed-size FIFO buffer and
// mirrors each one to the structured logger.
type Ring struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	next    int
	full    bool

	logger *slog.Logger
	now    func() time.Time
}

func NewRing(capacity int, logger *slog.Logger) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ring{
		entries: make([]domain.LogEntry, capacity),
		logger:  logger,
		now:     time.Now,
	}
}

func (r *Ring) Info(tag, message string)  { r.append(domain.LevelInfo, tag, message) }
func (r *Ring) Warn(tag, message string)  { r.append(domain.LevelWarn, tag, message) }
func (r *Ring) Error(tag, message string) { r.append(domain.LevelError, tag, message) }

func (r *Ring) append(level domain.LogLevel, tag, message string) {
	entry := domain.LogEntry{
		Timestamp: r.now(),
		Level:     level,
		Tag:       tag,
		Message:   message,
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()

	attrs := []any{"tag", tag, "message", message}
	switch level {
	case domain.LevelWarn:
		r.logger.Warn("pipeline_event", attrs...)
	case domain.LevelError:
		r.logger.Error("pipeline_event", attrs...)
	default:
		r.logger.Info("pipeline_event", attrs...)
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything retained.
func (r *Ring) Recent(limit int) []domain.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.LogEntry, 0, limit)
	pos := r.next
	for i := 0; i < limit; i++ {
		pos = (pos - 1 + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[pos])
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

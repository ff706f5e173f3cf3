package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecentIsNewestFirst(t *testing.T) {
	r := NewRing(10, quietLogger())
	r.Info("UPLOAD", "one")
	r.Warn("PDF", "two")
	r.Error("GROQ", "three")

	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Message != "three" || got[0].Level != domain.LevelError || got[2].Message != "one" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got := r.Recent(2); len(got) != 2 || got[1].Message != "two" {
		t.Fatalf("unexpected limited result %+v", got)
	}
}

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	r := NewRing(DefaultCapacity, quietLogger())
	for i := 0; i < 150; i++ {
		r.Info("QUERY", fmt.Sprintf("event-%d", i))
	}
	if r.Len() != DefaultCapacity {
		t.Fatalf("expected %d entries, got %d", DefaultCapacity, r.Len())
	}
	got := r.Recent(500)
	if len(got) != DefaultCapacity {
		t.Fatalf("expected capacity-bounded result, got %d", len(got))
	}
	if got[0].Message != "event-149" || got[len(got)-1].Message != "event-50" {
		t.Fatalf("unexpected window %q .. %q", got[0].Message, got[len(got)-1].Message)
	}
}

func TestRingConcurrentWriters(t *testing.T) {
	r := NewRing(DefaultCapacity, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Info("INDEX", fmt.Sprintf("%d-%d", i, j))
				_ = r.Recent(5)
			}
		}(i)
	}
	wg.Wait()
	if r.Len() != DefaultCapacity {
		t.Fatalf("expected full ring, got %d", r.Len())
	}
}

package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

// Registry holds every live session for the lifetime of the process.
// Entries are inserted once and never replaced or removed, so readers
// never wait on writers.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Insert(entry ports.IndexedSession) error {
	id := strings.TrimSpace(entry.Session.ID)
	if id == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if entry.Index == nil {
		return fmt.Errorf("%w: session %s has no index", domain.ErrInvalidInput, id)
	}

	if _, loaded := r.sessions.LoadOrStore(id, entry); loaded {
		return fmt.Errorf("%w: session %s already registered", domain.ErrInvalidInput, id)
	}
	r.count.Add(1)
	return nil
}

func (r *Registry) Get(id string) (ports.IndexedSession, bool) {
	value, ok := r.sessions.Load(id)
	if !ok {
		return ports.IndexedSession{}, false
	}
	return value.(ports.IndexedSession), true
}

// List returns sessions oldest first.
func (r *Registry) List() []ports.IndexedSession {
	out := make([]ports.IndexedSession, 0, r.Len())
	r.sessions.Range(func(_, value any) bool {
		out = append(out, value.(ports.IndexedSession))
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Session, out[j].Session
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (r *Registry) Len() int {
	return int(r.count.Load())
}

package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/infrastructure/index/hybrid"
)

const defaultWorkers = 4

// Builder fits hybrid indexes on a bounded ants pool so CPU-heavy index
// construction never runs on request goroutines.
type Builder struct {
	pool     *ants.Pool
	logger   *slog.Logger
	observer BuildObserver
}

type BuildObserver interface {
	StartIndexBuild()
	FinishIndexBuild(duration time.Duration, err error)
}

type buildResult struct {
	index *hybrid.Index
	err   error
}

func NewBuilder(workers int, logger *slog.Logger) (*Builder, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers,
		ants.WithExpiryDuration(30*time.Second),
		ants.WithPanicHandler(func(p any) {
			logger.Error("index_build_panic", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create index pool: %w", err)
	}
	return &Builder{pool: pool, logger: logger}, nil
}

func (b *Builder) WithObserver(observer BuildObserver) *Builder {
	b.observer = observer
	return b
}

func (b *Builder) Build(ctx context.Context, chunks []domain.Chunk) (ports.ChunkIndex, error) {
	done := make(chan buildResult, 1)
	err := b.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				if b.observer != nil {
					b.observer.FinishIndexBuild(0, fmt.Errorf("panic: %v", r))
				}
				done <- buildResult{err: fmt.Errorf("index build panic: %v", r)}
			}
		}()
		start := time.Now()
		if b.observer != nil {
			b.observer.StartIndexBuild()
		}
		index := hybrid.New(chunks)
		if b.observer != nil {
			b.observer.FinishIndexBuild(time.Since(start), nil)
		}
		done <- buildResult{index: index}
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "submit index build", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.index, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Builder) Running() int { return b.pool.Running() }

func (b *Builder) Close() {
	b.pool.Release()
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const answerTag = "ANSWER"

// AnswerChain asks each tier in order and returns the first success. When
// every tier fails the individual errors are joined under ErrBackendExhausted.
type AnswerChain struct {
	tiers    []ports.AnswerTier
	events   ports.EventLog
	observer ports.TierObserver
}

func NewAnswerChain(events ports.EventLog, tiers ...ports.AnswerTier) *AnswerChain {
	active := make([]ports.AnswerTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier != nil {
			active = append(active, tier)
		}
	}
	return &AnswerChain{tiers: active, events: events}
}

func (c *AnswerChain) WithObserver(observer ports.TierObserver) *AnswerChain {
	c.observer = observer
	return c
}

func (c *AnswerChain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, tier := range c.tiers {
		names[i] = tier.Name()
	}
	return names
}

func (c *AnswerChain) Answer(ctx context.Context, system, question string) (domain.Generation, error) {
	if len(c.tiers) == 0 {
		return domain.Generation{}, fmt.Errorf("%w: no answer tiers configured", domain.ErrBackendExhausted)
	}

	failures := make([]error, 0, len(c.tiers))
	for i, tier := range c.tiers {
		text, elapsed, err := tier.Answer(ctx, system, question)
		if err == nil {
			c.observe(tier.Name(), "ok", elapsed)
			c.events.Info(tier.Name(), fmt.Sprintf("OK %.2fs - %d chars", elapsed.Seconds(), utf8.RuneCountInString(text)))
			return domain.Generation{Text: text, Backend: tier.Name(), Elapsed: elapsed}, nil
		}

		c.observe(tier.Name(), outcomeOf(err), elapsed)
		c.events.Error(tier.Name(), "FAIL "+err.Error())
		failures = append(failures, fmt.Errorf("%s: %w", tier.Name(), err))
		if i+1 < len(c.tiers) {
			c.events.Warn(answerTag, fmt.Sprintf("%s failed, trying %s", tier.Name(), c.tiers[i+1].Name()))
		}
	}
	return domain.Generation{}, fmt.Errorf("%w: %w", domain.ErrBackendExhausted, errors.Join(failures...))
}

func (c *AnswerChain) observe(tier, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveTier(tier, outcome, elapsed)
	}
}

func outcomeOf(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrBackendTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsKind(err, domain.ErrBackendRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

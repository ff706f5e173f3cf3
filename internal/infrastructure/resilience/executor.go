package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor how to treat a failed attempt.
// A positive Delay replaces the computed backoff before the next attempt.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	Delay         time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

// RetryHook observes each scheduled retry.
type RetryHook func(operation string, attempt int, wait time.Duration, err error)

// Executor runs backend calls with bounded attempts, per-error waits and an
// optional circuit breaker per operation name.
type Executor struct {
	cfg      Config
	onRetry  RetryHook
	breakers sync.Map // operation -> *gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{cfg: cfg.normalize()}
}

// WithRetryHook registers fn to be called before every retry wait.
func (e *Executor) WithRetryHook(fn RetryHook) *Executor {
	e.onRetry = fn
	return e
}

func (e *Executor) MaxAttempts() int { return e.cfg.RetryMaxAttempts }

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: nil operation")
	}
	if operation = strings.TrimSpace(operation); operation == "" {
		operation = "unknown"
	}
	if classifier == nil {
		classifier = permanentFailure
	}

	run := func() error { return e.retry(ctx, operation, fn, classifier) }
	if !e.cfg.BreakerEnabled {
		return run()
	}
	_, err := e.breaker(operation, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, run()
	})
	return err
}

// retry returns nil on the first success, otherwise the last attempt's error.
func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	schedule := newBackoff(e.cfg)
	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = e.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}
		class := classifier(lastErr)
		if !class.Retryable || attempt == e.cfg.RetryMaxAttempts {
			return lastErr
		}

		wait := schedule.next(class.Delay)
		slog.Warn("retry_scheduled",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", lastErr,
		)
		if e.onRetry != nil {
			e.onRetry(operation, attempt, wait, lastErr)
		}
		if !sleep(ctx, wait) {
			return lastErr
		}
	}
	return lastErr
}

func (e *Executor) attempt(ctx context.Context, fn func(context.Context) error) error {
	if e.cfg.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	if cb, ok := e.breakers.Load(operation); ok {
		return cb.(*gobreaker.CircuitBreaker[struct{}])
	}
	minRequests, ratio := e.cfg.BreakerMinRequests, e.cfg.BreakerFailureRatio
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= minRequests && float64(c.TotalFailures)/float64(c.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("breaker_state_changed", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	actual, _ := e.breakers.LoadOrStore(operation, cb)
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func permanentFailure(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}

// backoff yields capped, growing waits unless a classifier supplies its own.
type backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
}

func newBackoff(cfg Config) *backoff {
	return &backoff{current: cfg.RetryInitialBackoff, max: cfg.RetryMaxBackoff, multiplier: cfg.RetryMultiplier}
}

func (b *backoff) next(override time.Duration) time.Duration {
	wait := min(b.current, b.max)
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)
	if override > 0 {
		return override
	}
	return wait
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

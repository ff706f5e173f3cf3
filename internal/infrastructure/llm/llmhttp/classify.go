package llmhttp

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

// RemoteClassifier retries every failure except caller cancellation.
// Rate-limit failures wait rateLimitDelay; everything else waits retryDelay.
func RemoteClassifier(rateLimitDelay, retryDelay time.Duration) resilience.ErrorClassifier {
	return func(err error) resilience.ErrorClassification {
		if err == nil {
			return resilience.ErrorClassification{}
		}
		if errors.Is(err, context.Canceled) {
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
		if domain.IsKind(err, domain.ErrBackendRateLimited) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Delay: rateLimitDelay}
		}
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Delay: retryDelay}
	}
}

// LocalClassifier never retries; timeouts and transport failures count
// against the breaker, client errors do not.
func LocalClassifier(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 && statusErr.StatusCode != 429 {
		return resilience.ErrorClassification{RecordFailure: false}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// ClipSystem bounds a system instruction to budget characters before it is
// sent to a provider. A non-positive budget uses the default.
func ClipSystem(system string, budget int) (string, bool) {
	if budget <= 0 {
		budget = domain.DefaultContextBudget
	}
	return domain.ClipToBudget(system, budget, domain.TrimMarker)
}

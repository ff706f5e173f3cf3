package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// AttemptTimeout bounds each individual attempt. Zero leaves the caller's deadline alone.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits short infrastructure calls such as event publishing.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     100 * time.Millisecond,
		RetryMaxBackoff:         400 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// LocalTierConfig is one attempt bounded by timeout behind an optional
// breaker, so a dead local model fails fast after a few calls.
func LocalTierConfig(timeout time.Duration, breaker bool) Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 1
	cfg.AttemptTimeout = timeout
	cfg.BreakerEnabled = breaker
	cfg.BreakerMinRequests = 3
	return cfg
}

// RemoteTierConfig retries with fixed waits; classifiers pick the wait per error.
func RemoteTierConfig(attempts int, retryDelay, timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = attempts
	cfg.RetryInitialBackoff = retryDelay
	cfg.RetryMaxBackoff = retryDelay
	cfg.RetryMultiplier = 1
	cfg.AttemptTimeout = timeout
	cfg.BreakerEnabled = false
	return cfg
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	orDefault(&c.RetryMaxAttempts, def.RetryMaxAttempts)
	orDefault(&c.RetryInitialBackoff, def.RetryInitialBackoff)
	orDefault(&c.RetryMaxBackoff, def.RetryMaxBackoff)
	c.RetryMaxBackoff = max(c.RetryMaxBackoff, c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = def.RetryMultiplier
	}
	c.AttemptTimeout = max(c.AttemptTimeout, 0)

	orDefault(&c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	orDefault(&c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	orDefault(&c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}

func orDefault[T int | uint32 | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

const (
	defaultTimeout = 3 * time.Second
	temperature    = 0.2
	contextWindow  = 4096
)

type Config struct {
	BaseURL        string
	Model          string
	Timeout        time.Duration
	BreakerEnabled bool
	ContextBudget  int
}

// Client is the local low-latency answer tier. It makes exactly one bounded
// attempt per call; failures are left to the next tier.
type Client struct {
	http     *llmhttp.Client
	model    string
	budget   int
	executor *resilience.Executor
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := llmhttp.New("ollama", cfg.BaseURL, timeout)
	return &Client{
		http:     httpClient,
		model:    cfg.Model,
		budget:   cfg.ContextBudget,
		executor: resilience.NewExecutor(resilience.LocalTierConfig(timeout, cfg.BreakerEnabled)),
	}
}

func (c *Client) Name() string { return "Ollama/" + c.model }

func (c *Client) Answer(ctx context.Context, system, question string) (string, time.Duration, error) {
	system, trimmed := llmhttp.ClipSystem(system, c.budget)
	if trimmed {
		slog.Warn("system_instruction_trimmed", "tier", c.Name())
	}

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": question,
		"system": system,
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
			"num_ctx":     contextWindow,
		},
	}

	start := time.Now()
	var text string
	err := c.executor.Execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.http.PostJSON(callCtx, "/api/generate", reqBody, &response, "generate"); err != nil {
			return err
		}
		text = strings.TrimSpace(response.Response)
		return nil
	}, llmhttp.LocalClassifier)
	elapsed := time.Since(start)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return "", elapsed, domain.WrapError(domain.ErrTemporary, "ollama generate", err)
		}
		return "", elapsed, err
	}
	if text == "" {
		return "", elapsed, fmt.Errorf("%w: ollama returned an empty response", domain.ErrMalformedOutput)
	}
	return text, elapsed, nil
}

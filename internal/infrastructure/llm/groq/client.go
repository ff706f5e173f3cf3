package groq

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	answerTemperature = 0.2
	visionTemperature = 0.1
	maxTokens         = 1024
)

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	VisionModel    string
	Timeout        time.Duration
	Attempts       int
	RateLimitDelay time.Duration
	RetryDelay     time.Duration
	ContextBudget  int
}

// Client talks to an OpenAI-compatible chat completions API. It serves as
// the remote answer tier and, with a vision model, as the image describer.
type Client struct {
	http       *llmhttp.Client
	cfg        Config
	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Client{
		http:       llmhttp.New("groq", cfg.BaseURL, cfg.Timeout).WithBearer(cfg.APIKey),
		cfg:        cfg,
		executor:   resilience.NewExecutor(resilience.RemoteTierConfig(cfg.Attempts, cfg.RetryDelay, cfg.Timeout)),
		classifier: llmhttp.RemoteClassifier(cfg.RateLimitDelay, cfg.RetryDelay),
	}
}

// WithRetryHook reports scheduled retries, e.g. to the telemetry ring.
func (c *Client) WithRetryHook(fn resilience.RetryHook) *Client {
	c.executor.WithRetryHook(fn)
	return c
}

func (c *Client) Name() string { return "Groq/" + c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Answer(ctx context.Context, system, question string) (string, time.Duration, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", 0, fmt.Errorf("%w: GROQ_API_KEY not set", domain.ErrInvalidInput)
	}
	system, trimmed := llmhttp.ClipSystem(system, c.cfg.ContextBudget)
	if trimmed {
		slog.Warn("system_instruction_trimmed", "tier", c.Name())
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
		Temperature: answerTemperature,
		MaxTokens:   maxTokens,
	}
	return c.complete(ctx, "groq.chat", req)
}

// Vision exposes the client's vision model as a ports.VisionBackend.
func (c *Client) Vision() *Vision { return &Vision{client: c} }

type Vision struct {
	client *Client
}

func (v *Vision) Name() string { return "Groq/" + v.client.cfg.VisionModel }

func (v *Vision) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, time.Duration, error) {
	if strings.TrimSpace(v.client.cfg.APIKey) == "" {
		return "", 0, fmt.Errorf("%w: GROQ_API_KEY not set", domain.ErrInvalidInput)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := chatRequest{
		Model: v.client.cfg.VisionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		}},
		Temperature: visionTemperature,
		MaxTokens:   maxTokens,
	}
	return v.client.complete(ctx, "groq.vision", req)
}

func (c *Client) complete(ctx context.Context, operation string, req chatRequest) (string, time.Duration, error) {
	start := time.Now()
	var text string
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		var resp chatResponse
		if err := c.http.PostJSON(callCtx, "/chat/completions", req, &resp, "chat completion"); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: groq returned no choices", domain.ErrMalformedOutput)
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return fmt.Errorf("%w: groq returned empty content", domain.ErrMalformedOutput)
		}
		return nil
	}, c.classifier)
	return text, time.Since(start), err
}

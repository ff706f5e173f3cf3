package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

const (
	DefaultModel = "gemini-2.5-flash"

	answerTemperature = 0.2
	visionTemperature = 0.1
	maxOutputTokens   = 1024
)

type Config struct {
	APIKey         string
	Model          string
	Timeout        time.Duration
	Attempts       int
	RateLimitDelay time.Duration
	RetryDelay     time.Duration
	ContextBudget  int
}

type generateFunc func(ctx context.Context, system string, temperature float32, parts ...genai.Part) (string, error)

// Client is the optional third answer tier and alternative vision provider.
type Client struct {
	cfg        Config
	client     *genai.Client
	generate   generateFunc
	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", domain.ErrInvalidInput)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c := newClient(cfg, nil)
	c.client = cl
	c.generate = c.generateContent
	return c, nil
}

func newClient(cfg Config, generate generateFunc) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
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
		cfg:        cfg,
		generate:   generate,
		executor:   resilience.NewExecutor(resilience.RemoteTierConfig(cfg.Attempts, cfg.RetryDelay, cfg.Timeout)),
		classifier: llmhttp.RemoteClassifier(cfg.RateLimitDelay, cfg.RetryDelay),
	}
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) WithRetryHook(fn resilience.RetryHook) *Client {
	c.executor.WithRetryHook(fn)
	return c
}

func (c *Client) Name() string { return "Gemini/" + c.cfg.Model }

func (c *Client) Answer(ctx context.Context, system, question string) (string, time.Duration, error) {
	system, trimmed := llmhttp.ClipSystem(system, c.cfg.ContextBudget)
	if trimmed {
		slog.Warn("system_instruction_trimmed", "tier", c.Name())
	}
	return c.call(ctx, "gemini.generate", system, answerTemperature, genai.Text(question))
}

// Describe implements ports.VisionBackend with an inline image part.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, time.Duration, error) {
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if format == "" {
		format = "jpeg"
	}
	return c.call(ctx, "gemini.vision", "", visionTemperature, genai.ImageData(format, image), genai.Text(prompt))
}

func (c *Client) call(ctx context.Context, operation, system string, temperature float32, parts ...genai.Part) (string, time.Duration, error) {
	start := time.Now()
	var text string
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		out, err := c.generate(callCtx, system, temperature, parts...)
		if err != nil {
			return classifyGeminiError(operation, err)
		}
		text = strings.TrimSpace(out)
		if text == "" {
			return fmt.Errorf("%w: gemini returned no text", domain.ErrMalformedOutput)
		}
		return nil
	}, c.classifier)
	return text, time.Since(start), err
}

func (c *Client) generateContent(ctx context.Context, system string, temperature float32, parts ...genai.Part) (string, error) {
	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxOutputTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func classifyGeminiError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrBackendTimeout, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == 429 {
			return domain.WrapError(domain.ErrBackendRateLimited, operation, err)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.ResourceExhausted:
				return domain.WrapError(domain.ErrBackendRateLimited, operation, err)
			case codes.DeadlineExceeded:
				return domain.WrapError(domain.ErrBackendTimeout, operation, err)
			}
		}
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}

package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/llmhttp"
)

const renderDPI = 150

// Client calls an external OCR service that rasterizes and recognizes one
// PDF page per request. The service wraps a non-reentrant engine, so calls
// pass through a gate of configurable width.
type Client struct {
	http *llmhttp.Client
	gate *semaphore.Weighted
}

func New(baseURL string, concurrency int, timeout time.Duration) *Client {
	if concurrency <= 0 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: llmhttp.New("ocr", baseURL, timeout),
		gate: semaphore.NewWeighted(int64(concurrency)),
	}
}

type recognizeRequest struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	DPI      int    `json:"dpi"`
}

type recognizeResponse struct {
	Text *string `json:"text"`
}

func (c *Client) Recognize(ctx context.Context, document []byte, page int) (string, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.gate.Release(1)

	req := recognizeRequest{
		Document: base64.StdEncoding.EncodeToString(document),
		Page:     page,
		DPI:      renderDPI,
	}
	var resp recognizeResponse
	if err := c.http.PostJSON(ctx, "/ocr", req, &resp, "recognize"); err != nil {
		return "", err
	}
	if resp.Text == nil {
		return "", fmt.Errorf("%w: ocr response has no text field", domain.ErrMalformedOutput)
	}
	return strings.TrimSpace(*resp.Text), nil
}

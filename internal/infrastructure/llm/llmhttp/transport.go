package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// Client posts JSON to one provider's HTTP API and converts transport
// failures into domain error kinds.
type Client struct {
	Provider   string
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
}

func New(provider, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		Provider:   provider,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Headers:    map[string]string{},
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) WithBearer(token string) *Client {
	if strings.TrimSpace(token) != "" {
		c.Headers["Authorization"] = "Bearer " + strings.TrimSpace(token)
	}
	return c
}

type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "llm status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyTransportError(c.Provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(c.Provider, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrMalformedOutput, c.Provider+" decode "+operation, err)
	}
	return nil
}

func statusError(provider, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := &HTTPStatusError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.WrapError(domain.ErrBackendRateLimited, provider+" "+operation, statusErr)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return domain.WrapError(domain.ErrBackendTimeout, provider+" "+operation, statusErr)
	case resp.StatusCode >= 500:
		return domain.WrapError(domain.ErrTemporary, provider+" "+operation, statusErr)
	default:
		return statusErr
	}
}

func classifyTransportError(provider, operation string, err error) error {
	op := provider + " " + operation
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return domain.WrapError(domain.ErrBackendTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w", op, err)
	}
	return domain.WrapError(domain.ErrTemporary, op, err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

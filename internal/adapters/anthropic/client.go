// Package anthropic consults a Claude model through the Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/tabula/pkg/domain"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-20240620"
	DefaultMaxTokens = 2048
	apiVersion       = "2023-06-01"
)

// Config holds the client settings. Zero values fall back to the defaults.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Client implements ports.Consultant.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client. The API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 8 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.DiscardHandler),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Consult sends the transcript with the command tools and returns the model's decision.
// A tool call the model malformed is returned as is; it fails when decoded and the
// session reports it back to the model.
func (c *Client) Consult(ctx context.Context, transcript *domain.Transcript) (domain.Decision, error) {
	body, err := json.Marshal(request{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0,
		System:      domain.SystemPrompt,
		Tools:       toTools(domain.Tools()),
		ToolChoice:  &toolChoice{Type: "auto", DisableParallelToolUse: true},
		Messages:    toMessages(transcript),
	})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("encode request: %w", err)
	}

	data, err := c.post(ctx, body)
	if err != nil {
		return domain.Decision{}, err
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Decision{}, fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("model replied", "message_id", resp.ID, "stop_reason", resp.StopReason)
	return toDecision(resp), nil
}

// post sends body to /v1/messages, retrying network errors, 429 and 5xx with
// exponential backoff and jitter. A Retry-After header overrides the backoff.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	backoff := c.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		data, wait, err := c.do(ctx, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}

		delay := withJitter(backoff)
		if wait > 0 {
			delay = wait
		}
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
		c.logger.Warn("retrying model request", "attempt", attempt, "delay", delay, "err", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, body []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, 0, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("request-id")}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		apiErr.Type = eb.Error.Type
		apiErr.Message = eb.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	wait := parseRetryAfter(resp.Header.Get("Retry-After"))
	return nil, wait, classify(apiErr, wait)
}

func classify(apiErr *APIError, retryAfter time.Duration) error {
	switch sc := apiErr.StatusCode; {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		return &RateLimitError{APIError: apiErr, RetryAfter: retryAfter}
	case sc >= 500:
		return &ServerError{APIError: apiErr}
	case sc >= 400:
		return &BadRequestError{APIError: apiErr}
	}
	return apiErr
}

func retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	if errors.As(err, &rl) || errors.As(err, &se) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && !errors.Is(err, context.Canceled)
}

// parseRetryAfter reads the header as seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// withJitter applies +/-20% jitter.
func withJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

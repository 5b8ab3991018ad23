// Package generation talks to the external text generation service and
// drives the bounded retry loop that turns its replies into accepted
// calculator source, degrading to deterministic fallback content.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kingrea/calcforge/internal/config"
	"github.com/kingrea/calcforge/internal/workitem"
)

const (
	apiVersion   = "2023-06-01"
	maxErrorBody = 512
)

// Client produces candidate calculator source for one item. Implementations
// do not retry.
type Client interface {
	Generate(ctx context.Context, item workitem.Item) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, item workitem.Item) (string, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, item workitem.Item) (string, error) {
	return f(ctx, item)
}

// HTTPStatusError reports a non-success response from the service.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation: service returned %s", e.Status)
	}
	return fmt.Sprintf("generation: service returned %s: %s", e.Status, e.Body)
}

// MalformedResponseError reports a success response the client could not
// turn into source text.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation: malformed response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation: malformed response: %s", e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// HTTPClient calls a messages-style endpoint. It blocks the caller until
// minInterval has passed since its previous call; the timestamp is owned by
// the instance and touched only by the goroutine calling Generate.
type HTTPClient struct {
	endpoint    string
	model       string
	apiKey      string
	maxTokens   int
	minInterval time.Duration
	prompts     *Library
	http        *http.Client

	now      func() time.Time
	sleep    Sleeper
	lastCall time.Time
}

// ClientOption customizes an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock overrides the time source and the sleeper used for call spacing.
func WithClock(now func() time.Time, sleep Sleeper) ClientOption {
	return func(c *HTTPClient) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithPrompts overrides the prompt library.
func WithPrompts(lib *Library) ClientOption {
	return func(c *HTTPClient) {
		if lib != nil {
			c.prompts = lib
		}
	}
}

// NewHTTPClient builds a client from the generation config. apiKey must be
// non-empty.
func NewHTTPClient(cfg config.GenerationConfig, apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("generation: api key is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("generation: endpoint is required")
	}
	c := &HTTPClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      apiKey,
		maxTokens:   cfg.MaxTokens,
		minInterval: cfg.MinInterval,
		http:        &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
		sleep:       SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prompts == nil {
		lib, err := LoadLibrary()
		if err != nil {
			return nil, err
		}
		c.prompts = lib
	}
	return c, nil
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate sends one request for item and returns the extracted source.
func (c *HTTPClient) Generate(ctx context.Context, item workitem.Item) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	prompt := c.prompts.Prompt(item)
	payload, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    prompt.System,
		Messages:  []message{{Role: "user", Content: prompt.User}},
	})
	if err != nil {
		return "", fmt.Errorf("generation: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation: request %s: %w", item.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &MalformedResponseError{Reason: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}

	var decoded messageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &MalformedResponseError{Reason: "decode body", Err: err}
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	source := ExtractSource(text.String())
	if source == "" {
		return "", &MalformedResponseError{Reason: "no text content"}
	}
	return source, nil
}

// wait blocks until minInterval has elapsed since the previous call, then
// records the start of this one.
func (c *HTTPClient) wait(ctx context.Context) error {
	if !c.lastCall.IsZero() && c.minInterval > 0 {
		if remaining := c.minInterval - c.now().Sub(c.lastCall); remaining > 0 {
			if err := c.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	c.lastCall = c.now()
	return nil
}

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n(.*?)```")

// ExtractSource returns the body of the first fenced code block in text, or
// the whole trimmed text when there is none.
func ExtractSource(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}
	if trimmed == "" {
		return ""
	}
	return trimmed + "\n"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

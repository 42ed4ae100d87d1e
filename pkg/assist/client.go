// Package assist provides a small OpenRouter chat-completions client with
// sequential model fallback. Each request walks an ordered model list until
// one produces a usable answer; when every model fails, the configured static
// fallback payload is returned so callers always get a response.
package assist

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

	"github.com/mihaimyh/paysync/pkg/paysync"
)

const (
	openRouterBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 1024
)

// ErrNoAPIKey is returned when the client was built without an API key.
var ErrNoAPIKey = errors.New("assist: API key not configured")

// Config holds the assist client configuration.
type Config struct {
	// APIKey is the OpenRouter API key. Required.
	APIKey string

	// Models is the ordered fallback chain. The first model that returns a
	// valid response wins; later models are only tried after earlier ones
	// fail. Required, at least one entry.
	Models []string

	// Fallback is the static payload returned when every model fails.
	// Optional; when empty the zero Response with Fallback set is returned.
	Fallback string

	// BaseURL overrides the OpenRouter endpoint, for testing.
	BaseURL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	// MaxTokens caps the completion length. Defaults to 1024.
	MaxTokens int

	// Logger is used for structured logging. If nil, logging is disabled.
	Logger paysync.Logger
}

// Client is a stateless OpenRouter client. Safe for concurrent use.
type Client struct {
	apiKey     string
	models     []string
	fallback   string
	baseURL    string
	httpClient *http.Client
	maxTokens  int
	logger     paysync.Logger
}

// Request is a single completion request.
type Request struct {
	System string
	Prompt string

	// Validate optionally checks the model output beyond non-emptiness,
	// e.g. that it parses as the expected JSON shape. A non-nil error moves
	// on to the next model.
	Validate func(content string) error
}

// Response is the completion result.
type Response struct {
	// Content is the first choice's message content, or the static fallback
	// payload when Fallback is true.
	Content string

	// Model is the model that produced Content, empty for the fallback.
	Model string

	// Fallback reports that every model failed and Content is the
	// configured static payload.
	Fallback bool
}

// NewClient creates an assist client.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if len(config.Models) == 0 {
		return nil, errors.New("assist: at least one model is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := config.Logger
	if logger == nil {
		logger = &paysync.NoopLogger{}
	}

	return &Client{
		apiKey:     strings.TrimSpace(config.APIKey),
		models:     config.Models,
		fallback:   config.Fallback,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxTokens:  maxTokens,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete tries each configured model in order and returns the first valid
// answer. A model gets exactly one attempt; transport errors, non-200
// statuses, empty content and failed validation all mean "next model". Only
// context cancellation aborts the chain early. When the chain is exhausted
// the static fallback response is returned with a nil error.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	for _, model := range c.models {
		content, err := c.completeWith(ctx, model, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("model failed, trying next",
				paysync.Field{Key: "model", Value: model},
				paysync.Field{Key: "error", Value: err.Error()})
			continue
		}
		return &Response{Content: content, Model: model}, nil
	}

	c.logger.Warn("all models failed, returning fallback",
		paysync.Field{Key: "models", Value: len(c.models)})
	return &Response{Content: c.fallback, Fallback: true}, nil
}

func (c *Client) completeWith(ctx context.Context, model string, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("response content is empty")
	}

	if req.Validate != nil {
		if err := req.Validate(content); err != nil {
			return "", fmt.Errorf("validation failed: %w", err)
		}
	}
	return content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

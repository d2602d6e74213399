// Package assistantapi is a typed wrapper around the visa assistant backend.
//
// Every operation performs exactly one HTTP call. There is no retry, caching,
// authentication or timeout policy; failures are returned to the caller as
// errors wrapping ErrRequestFailed.
package assistantapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000"

// ErrRequestFailed is wrapped by every error the client returns, whether the
// request never reached the backend or the backend answered with a non-2xx
// status.
var ErrRequestFailed = errors.New("assistant api request failed")

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger used for debug output of failed calls.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalised backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GenerateReply asks the backend for the consultant's next turn.
func (c *Client) GenerateReply(ctx context.Context, req GenerateReplyRequest) (*GenerateReplyResponse, error) {
	req.ChatHistory = nonNilHistory(req.ChatHistory)

	var resp GenerateReplyResponse
	if err := c.do(ctx, http.MethodPost, "/generate-reply", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImproveAI submits a real consultant reply so the backend can tune its prompt.
func (c *Client) ImproveAI(ctx context.Context, req ImproveAIRequest) (*ImproveAIResponse, error) {
	req.ChatHistory = nonNilHistory(req.ChatHistory)

	var resp ImproveAIResponse
	if err := c.do(ctx, http.MethodPost, "/improve-ai", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImproveAIManually applies free-text instructions to the backend prompt.
func (c *Client) ImproveAIManually(ctx context.Context, req ImproveAIManuallyRequest) (*ImproveAIManuallyResponse, error) {
	var resp ImproveAIManuallyResponse
	if err := c.do(ctx, http.MethodPost, "/improve-ai-manually", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPrompt fetches the current system prompt.
func (c *Client) GetPrompt(ctx context.Context) (*GetPromptResponse, error) {
	var resp GetPromptResponse
	if err := c.do(ctx, http.MethodGet, "/prompt", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePrompt replaces the current system prompt.
func (c *Client) UpdatePrompt(ctx context.Context, req UpdatePromptRequest) (*UpdatePromptResponse, error) {
	var resp UpdatePromptResponse
	if err := c.do(ctx, http.MethodPut, "/prompt", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode %s %s: %v", ErrRequestFailed, method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build %s %s: %v", ErrRequestFailed, method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debugw("backend call failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debugw("backend returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrRequestFailed, method, path, err)
	}
	return nil
}

func nonNilHistory(history []ChatMessage) []ChatMessage {
	if history == nil {
		return []ChatMessage{}
	}
	return history
}

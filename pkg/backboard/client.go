// Package backboard is the adapter for the Backboard LLM gateway.
//
// The gateway exposes an assistant/thread/message model with a mixed
// wire dialect: assistant and thread creation take JSON bodies, message
// sends take form-encoded fields. This package exists to hide that.
package backboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kingston-civic/civicsim/pkg/metrics"
)

const (
	// DefaultModel and DefaultProvider are used when the caller does
	// not select a model explicitly.
	DefaultModel    = "gemini-2.5-flash"
	DefaultProvider = "google"

	createTimeout  = 30 * time.Second
	messageTimeout = 60 * time.Second
)

// ErrEmptyContent is returned when a message send is attempted with no
// content; the gateway is never contacted in that case.
var ErrEmptyContent = errors.New("message content is empty")

// StatusError is the single typed failure for non-2xx gateway replies.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backboard request failed with status %d: %s", e.Status, e.Body)
}

// Client talks to the Backboard gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client. baseURL has no trailing slash;
// apiKey is sent as X-API-Key on every request.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Per-call deadlines are applied via context; the transport
		// itself carries no timeout.
		httpClient: &http.Client{},
		logger:     logger.With("component", "backboard"),
	}
}

// CreateAssistant registers an assistant with the given system prompt
// and returns its id.
func (c *Client) CreateAssistant(ctx context.Context, name, systemPrompt string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"name":          name,
		"system_prompt": systemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode assistant request: %w", err)
	}

	reply, err := c.postJSON(ctx, "create_assistant", c.baseURL+"/assistants", body, createTimeout)
	if err != nil {
		return "", err
	}

	id := firstString(reply, "assistant_id", "id")
	if id == "" {
		return "", fmt.Errorf("assistant response missing id: %v", reply)
	}
	c.logger.Debug("Created assistant", "name", name, "assistant_id", id)
	return id, nil
}

// CreateThread opens a new conversation thread under the assistant and
// returns its id. The gateway rejects bodyless posts, so an explicit
// empty JSON object is sent.
func (c *Client) CreateThread(ctx context.Context, assistantID string) (string, error) {
	endpoint := fmt.Sprintf("%s/assistants/%s/threads", c.baseURL, assistantID)
	reply, err := c.postJSON(ctx, "create_thread", endpoint, []byte("{}"), createTimeout)
	if err != nil {
		return "", err
	}

	id := firstString(reply, "thread_id", "id")
	if id == "" {
		return "", fmt.Errorf("thread response missing id: %v", reply)
	}
	c.logger.Debug("Created thread", "assistant_id", assistantID, "thread_id", id)
	return id, nil
}

// SendMessage posts a message to the thread and returns the assistant's
// reply text. Model and provider default when empty.
func (c *Client) SendMessage(ctx context.Context, threadID, content, model, provider string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if model == "" {
		model = DefaultModel
	}
	if provider == "" {
		provider = DefaultProvider
	}

	form := url.Values{}
	form.Set("content", content)
	form.Set("stream", "false")
	form.Set("memory", "Auto")
	form.Set("model", model)
	form.Set("provider", provider)

	endpoint := fmt.Sprintf("%s/threads/%s/messages", c.baseURL, threadID)
	reply, err := c.postForm(ctx, "send_message", endpoint, form, messageTimeout)
	if err != nil {
		return "", err
	}

	text := firstString(reply, "content", "text")
	if text == "" {
		return "", fmt.Errorf("message response missing content: %v", reply)
	}
	return text, nil
}

func (c *Client) postJSON(ctx context.Context, operation, endpoint string, body []byte, timeout time.Duration) (map[string]interface{}, error) {
	return c.do(ctx, operation, endpoint, "application/json", bytes.NewReader(body), timeout)
}

func (c *Client) postForm(ctx context.Context, operation, endpoint string, form url.Values, timeout time.Duration) (map[string]interface{}, error) {
	return c.do(ctx, operation, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), timeout)
}

func (c *Client) do(ctx context.Context, operation, endpoint, contentType string, body io.Reader, timeout time.Duration) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("backboard %s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("failed to read backboard response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		c.logger.Warn("Backboard request failed",
			"operation", operation, "status", resp.StatusCode)
		return nil, &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("failed to decode backboard response: %w", err)
	}

	metrics.UpstreamRequests.WithLabelValues(operation, "ok").Inc()
	return parsed, nil
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := m[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

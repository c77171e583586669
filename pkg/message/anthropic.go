package message

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

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultModel      = "claude-3-5-haiku-latest"
	defaultMaxTokens  = 256
	defaultTimeout    = 30 * time.Second
	defaultMaxTries   = 4
	apiVersion        = "2023-06-01"
	maxDiffBytes      = 10000
	truncatedDiffNote = "\n... (truncated)\n"
)

const systemPrompt = `You write git commit messages.

Follow the Conventional Commits format:
- <type>(<scope>): <description>
- Types: feat, fix, docs, style, refactor, test, chore, perf, ci, build
- Keep the first line under 72 characters
- Use the imperative mood ("add", not "added")
- Add a short body only when the subject cannot carry the intent

Output only the commit message.`

// APIError is a non-success answer from the Messages API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("messages api: %d %s: %s", e.Status, e.Type, e.Message)
	}

	return fmt.Sprintf("messages api: %d: %s", e.Status, e.Message)
}

// retryable reports whether the request may succeed when sent again.
func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Anthropic generates messages with the Anthropic Messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	maxTries   uint
	httpClient *http.Client
	backoff    func() backoff.BackOff
}

// AnthropicOption configures an Anthropic client.
type AnthropicOption func(*Anthropic)

// WithModel sets the model. An empty name keeps the default.
func WithModel(model string) AnthropicOption {
	return func(a *Anthropic) {
		if model != "" {
			a.model = model
		}
	}
}

// WithMaxTokens bounds the length of the answer.
func WithMaxTokens(n int) AnthropicOption {
	return func(a *Anthropic) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) AnthropicOption {
	return func(a *Anthropic) { a.httpClient.Timeout = timeout }
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) AnthropicOption {
	return func(a *Anthropic) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithMaxTries bounds the attempts for rate-limited or failed requests.
func WithMaxTries(n uint) AnthropicOption {
	return func(a *Anthropic) {
		if n > 0 {
			a.maxTries = n
		}
	}
}

// WithRetryInterval sets the first retry delay.
func WithRetryInterval(d time.Duration) AnthropicOption {
	return func(a *Anthropic) {
		a.backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = d

			return b
		}
	}
}

// NewAnthropic creates a client authenticated with apiKey.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		maxTries:   defaultMaxTries,
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiErrorBody  `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Generate asks the model for a commit message describing diff.
func (a *Anthropic) Generate(ctx context.Context, diff string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userPrompt(diff)}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	text, err := backoff.Retry(ctx, func() (string, error) {
		text, sendErr := a.send(ctx, body)

		var apiErr *APIError
		if errors.As(sendErr, &apiErr) && !apiErr.retryable() {
			return "", backoff.Permanent(sendErr)
		}

		return text, sendErr
	},
		backoff.WithBackOff(a.backoff()),
		backoff.WithMaxTries(a.maxTries),
	)
	if err != nil {
		return "", fmt.Errorf("generate message: %w", err)
	}

	text = strings.Trim(strings.TrimSpace(text), "`")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrEmptyMessage
	}

	return text, nil
}

func (a *Anthropic) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded messagesResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if decodeErr == nil && decoded.Error != nil {
			apiErr.Type = decoded.Error.Type
			apiErr.Message = decoded.Error.Message
		}

		return "", apiErr
	}

	if decodeErr != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", decodeErr))
	}

	var b strings.Builder

	for _, block := range decoded.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	return b.String(), nil
}

func userPrompt(diff string) string {
	var b strings.Builder

	b.WriteString("Write a commit message for these changes:\n\n```diff\n")

	if len(diff) > maxDiffBytes {
		b.WriteString(diff[:maxDiffBytes])
		b.WriteString(truncatedDiffNote)
	} else {
		b.WriteString(diff)
	}

	b.WriteString("\n```")

	return b.String()
}

package llm

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
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 180 * time.Second
	probePrompt        = "Test"
	probeMaxTokens     = 10
)

// ErrMalformedResponse reports a 2xx response without an assistant message.
var ErrMalformedResponse = errors.New("llm response: malformed payload")

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	ProbeMaxTokens int
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
			ProbeMaxTokens: cfg.ProbeMaxTokens,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.ProbeMaxTokens <= 0 {
		client.cfg.ProbeMaxTokens = probeMaxTokens
	}
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Request is a single-turn chat completion request. MaxTokens is omitted from
// the payload when zero.
type Request struct {
	Content   string
	MaxTokens int
}

// Response is the decoded success payload. Raw holds the exact bytes returned
// by the endpoint.
type Response struct {
	Choices []Choice `json:"choices"`
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`
	Raw     []byte   `json:"-"`
}

// Choice is one completion alternative.
type Choice struct {
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Message is an assistant message. Content is a pointer so an absent field is
// distinguishable from an empty one.
type Message struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
	Refusal string  `json:"refusal,omitempty"`
}

// Usage reports token accounting when the endpoint provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns choices[0].message.content or ErrMalformedResponse. An
// empty string is a valid reply; only a missing field is malformed.
func (r *Response) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices (payload snippet: %s)", ErrMalformedResponse, r.snippet())
	}
	msg := r.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", fmt.Errorf("%w: choices[0].message.content absent (payload snippet: %s)", ErrMalformedResponse, r.snippet())
	}
	return *msg.Content, nil
}

// IndentedRaw returns the raw payload re-indented with two spaces. Payloads
// that are not valid JSON are returned unchanged.
func (r *Response) IndentedRaw() []byte {
	if r == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return r.Raw
	}
	return buf.Bytes()
}

func (r *Response) snippet() string {
	if r == nil {
		return "<empty>"
	}
	return summarizePayloadSnippet(string(r.Raw))
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// IsBadRequest reports whether err is a client-side rejection of the request
// body (400, 413, 422). These are the only statuses that warrant a reshaped
// retry.
func IsBadRequest(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

// Complete sends one chat completion request. It never retries.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("llm complete: api key required")
	}
	payload := chatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: req.Content}},
		MaxTokens: req.MaxTokens,
	}
	body, err := c.send(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp := &Response{Raw: body}
	if err := json.Unmarshal(body, resp); err != nil {
		return resp, fmt.Errorf("%w: decode: %v (payload snippet: %s)", ErrMalformedResponse, err, summarizePayloadSnippet(string(body)))
	}
	return resp, nil
}

// Probe issues the minimal request used to validate a credential.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Complete(ctx, Request{Content: probePrompt, MaxTokens: c.cfg.ProbeMaxTokens})
	if err != nil && errors.Is(err, ErrMalformedResponse) {
		// Any 2xx proves the credential.
		return nil
	}
	return err
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

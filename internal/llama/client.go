package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to a llama.cpp-compatible HTTP server (llama-server,
// llamafile, or any OpenAI-shaped local endpoint).
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	model string
}

// Generation parameters sent with every request. These mirror the serving
// host's historical defaults.
const (
	maxTokens     = 512
	temperature   = 0.7
	topP          = 0.9
	repeatPenalty = 1.1
)

// NewClient creates a Client for the engine at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// No overall timeout: generations stream for as long as
			// they stream. Initiation latency is bounded by ctx.
			Timeout: 0,
		},
	}
}

// SetModel records the model name attached to subsequent requests.
func (c *Client) SetModel(name string) {
	c.mu.Lock()
	c.model = name
	c.mu.Unlock()
}

// currentModel returns the recorded model name, possibly empty.
func (c *Client) currentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Ping checks that the engine answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inference engine unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("inference engine unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// chatRequest is the OpenAI-shaped streaming completion request.
type chatRequest struct {
	Model         string    `json:"model,omitempty"`
	Messages      []Message `json:"messages"`
	Stream        bool      `json:"stream"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature"`
	TopP          float64   `json:"top_p"`
	RepeatPenalty float64   `json:"repeat_penalty,omitempty"`
}

// chatChunk is one streamed completion delta.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream initiates a streaming generation over messages.
//
// The call blocks until the engine accepts the request and begins
// streaming; run it from a worker, not from a connection's read loop.
func (c *Client) ChatStream(ctx context.Context, messages []Message) (TokenStream, error) {
	body, err := json.Marshal(chatRequest{
		Model:         c.currentModel(),
		Messages:      messages,
		Stream:        true,
		MaxTokens:     maxTokens,
		Temperature:   temperature,
		TopP:          topP,
		RepeatPenalty: repeatPenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference engine returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return &sseTokenStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// sseTokenStream pulls tokens out of an OpenAI-style SSE response body.
type sseTokenStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Next returns the next non-empty token, or io.EOF when the stream ends.
func (s *sseTokenStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			s.body.Close()
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("token stream read failed: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			s.body.Close()
			return "", io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip frames we cannot parse rather than killing the
			// whole generation.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			return token, nil
		}
		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
			s.done = true
			s.body.Close()
			return "", io.EOF
		}
	}
}

// Close abandons the stream and releases the connection.
func (s *sseTokenStream) Close() error {
	s.done = true
	return s.body.Close()
}

// WaitReady polls Ping until the engine answers or the deadline passes.
// Used at startup when the engine and the control plane boot together.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = c.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

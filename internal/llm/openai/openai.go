// Package openai talks to OpenAI-compatible chat completion endpoints over
// plain HTTP, including server-sent event streaming.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sharebook/sharebook/internal/llm"
)

const (
	// Name is the provider's registry name.
	Name = "openai"
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

func init() {
	llm.Register(Name, func(opts llm.Options) (llm.Provider, error) {
		return New(opts), nil
	})
}

// Client is an OpenAI-compatible provider.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a client. The HTTP client's timeout does not apply to streams;
// those end with their context.
func New(opts llm.Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{apiKey: opts.APIKey, baseURL: baseURL, http: withTimeout(hc, timeout)}
}

func withTimeout(hc *http.Client, d time.Duration) *http.Client {
	cp := *hc
	if cp.Timeout == 0 {
		cp.Timeout = d
	}
	return &cp
}

// Name implements llm.Provider.
func (c *Client) Name() string { return Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, req llm.Request, stream bool) (*http.Request, error) {
	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

// apiError reads a failed response body into an llm.APIError.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	return &llm.APIError{Provider: Name, StatusCode: resp.StatusCode, Message: msg}
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	httpReq, err := c.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", apiError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream implements llm.Provider. Each "data:" line carries one delta and the
// stream completes at "data: [DONE]". A body that closes before [DONE] ends the
// stream with llm.ErrStreamTruncated.
func (c *Client) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	httpReq, err := c.newRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	streamClient := *c.http
	streamClient.Timeout = 0
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		send := func(ch llm.StreamChunk) bool {
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReader(resp.Body)
		for {
			// A final line may arrive without its newline, alongside io.EOF.
			line, readErr := reader.ReadString('\n')

			if data, ok := eventData(line); ok {
				if data == "[DONE]" {
					send(llm.StreamChunk{Done: true})
					return
				}
				var ev streamEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					send(llm.StreamChunk{Err: fmt.Errorf("failed to decode stream event: %w", err)})
					return
				}
				if len(ev.Choices) > 0 && ev.Choices[0].Delta.Content != "" {
					if !send(llm.StreamChunk{Text: ev.Choices[0].Delta.Content}) {
						return
					}
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					send(llm.StreamChunk{Err: fmt.Errorf("openai: %w", llm.ErrStreamTruncated)})
				} else {
					send(llm.StreamChunk{Err: fmt.Errorf("openai stream read failed: %w", readErr)})
				}
				return
			}
		}
	}()
	return out, nil
}

// eventData returns the payload of an SSE "data:" line.
func eventData(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

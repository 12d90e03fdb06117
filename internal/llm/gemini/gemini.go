// Package gemini implements the assistant provider on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/sharebook/sharebook/internal/llm"
)

// Name is the provider's registry name.
const Name = "gemini"

func init() {
	llm.Register(Name, func(opts llm.Options) (llm.Provider, error) {
		return New(context.Background(), opts)
	})
}

// Client is a Gemini provider.
type Client struct {
	client *genai.Client
}

// New creates a Gemini API client. opts.BaseURL overrides the API endpoint.
func New(ctx context.Context, opts llm.Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	if cc.HTTPClient == nil && opts.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return Name }

func contents(req llm.Request) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
}

func generationConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(req.Temperature)}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

// apiError converts a genai HTTP error into an llm.APIError.
func apiError(err error) error {
	var ge genai.APIError
	if errors.As(err, &ge) {
		return &llm.APIError{Provider: Name, StatusCode: ge.Code, Message: ge.Message}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents(req), generationConfig(req))
	if err != nil {
		return "", apiError(err)
	}
	return resp.Text(), nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		send := func(ch llm.StreamChunk) bool {
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, contents(req), generationConfig(req)) {
			if err != nil {
				send(llm.StreamChunk{Err: apiError(err)})
				return
			}
			if text := resp.Text(); text != "" && !send(llm.StreamChunk{Text: text}) {
				return
			}
		}
		send(llm.StreamChunk{Done: true})
	}()
	return out, nil
}

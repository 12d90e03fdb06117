// Package llm defines the completion provider interface used by the writing
// assistant and a registry of provider implementations.
//
// Providers register themselves from init() in their own packages, in the same
// way storage backends do; cmd/server blank-imports the ones it ships with.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownProvider is returned by New for names nothing registered.
	ErrUnknownProvider = errors.New("unknown AI provider")
	// ErrStreamTruncated is carried by the last chunk of a stream whose body
	// closed before the provider signalled completion.
	ErrStreamTruncated = errors.New("stream ended before completion")
)

// Request is a single-turn completion request.
type Request struct {
	Model       string
	Prompt      string
	Temperature float32
	// MaxTokens limits the response length. Zero leaves it to the provider.
	MaxTokens int
}

// StreamChunk is one piece of a streamed completion. The last chunk on a
// channel has Done set, or carries Err.
type StreamChunk struct {
	Text string
	Done bool
	Err  error
}

// Provider generates completions.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	// Stream returns a channel that is closed after a Done or Err chunk.
	// Cancelling ctx stops the stream.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// Options configure a provider instance for one API key.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Factory builds a provider from options.
type Factory func(opts Options) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider available under name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Registered returns the registered provider names, sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named provider.
func New(name string, opts Options) (Provider, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if opts.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	return factory(opts)
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsAuthError reports whether err is a provider rejecting the API key.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

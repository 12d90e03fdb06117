package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/llm"
	"github.com/sharebook/sharebook/internal/telemetry"
)

// Assistant modes.
const (
	ModeWriter     = "writer"
	ModeEditor     = "editor"
	ModeResearcher = "researcher"
	ModeSummarizer = "summarizer"
	ModeTranslator = "translator"
)

// Assistant defaults used when configuration leaves them empty. Temperature has
// no fallback here: zero is a valid setting and config supplies the default.
const (
	DefaultAssistantProvider = "openai"
	DefaultChapterIdeas      = 5
	MaxChapterIdeas          = 30
)

var defaultModels = map[string]string{
	"openai": "gpt-3.5-turbo",
	"gemini": "gemini-2.0-flash",
}

// ValidMode reports whether mode is a known assistant mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeWriter, ModeEditor, ModeResearcher, ModeSummarizer, ModeTranslator:
		return true
	}
	return false
}

// BuildPrompt assembles the assistant prompt. Context is omitted when empty.
func BuildPrompt(mode, context, prompt string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful AI assistant. Your current mode is ")
	sb.WriteString(mode)
	sb.WriteString(".")
	if context != "" {
		sb.WriteString("\n\nContext: ")
		sb.WriteString(context)
	}
	sb.WriteString("\n\nUser Prompt: ")
	sb.WriteString(prompt)
	sb.WriteString("\n\nResponse:")
	return sb.String()
}

// AssistantRequest is one assistant call.
type AssistantRequest struct {
	Provider string `json:"provider"`
	Mode     string `json:"mode"`
	Prompt   string `json:"prompt"`
	Context  string `json:"context"`
}

// ChapterIdea is a suggested chapter.
type ChapterIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// KeySource resolves a user's stored provider key and model.
type KeySource interface {
	GetDecrypted(ctx context.Context, userID, provider string) (string, bool)
	Get(ctx context.Context, userID, provider string) (*models.ProviderCredential, error)
}

// ProviderBuilder builds a provider for one key. llm.New is the production builder.
type ProviderBuilder func(name string, opts llm.Options) (llm.Provider, error)

// AssistantService runs completions with the caller's own provider key.
type AssistantService struct {
	keys  KeySource
	cfg   config.AssistantConfig
	build ProviderBuilder
}

// NewAssistantService creates the assistant. A nil build uses llm.New.
func NewAssistantService(keys KeySource, cfg config.AssistantConfig, build ProviderBuilder) *AssistantService {
	if build == nil {
		build = llm.New
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = DefaultAssistantProvider
	}
	return &AssistantService{keys: keys, cfg: cfg, build: build}
}

// resolved is a ready-to-call provider with its model.
type resolved struct {
	provider llm.Provider
	name     string
	model    string
}

func (s *AssistantService) defaultModel(provider string) string {
	if m := s.cfg.DefaultModels[provider]; m != "" {
		return m
	}
	return defaultModels[provider]
}

func (s *AssistantService) options(provider, key string) llm.Options {
	return llm.Options{APIKey: key, BaseURL: s.cfg.BaseURLs[provider], Timeout: s.cfg.Timeout}
}

// resolve picks the provider, loads the user's key and model and builds the client.
func (s *AssistantService) resolve(ctx context.Context, userID, provider string) (*resolved, error) {
	name := NormalizeProvider(provider)
	if name == "" {
		name = s.cfg.DefaultProvider
	}

	key, ok := s.keys.GetDecrypted(ctx, userID, name)
	if !ok {
		return nil, fmt.Errorf("%w: no API key configured for provider %s", ErrConfiguration, name)
	}

	model := s.defaultModel(name)
	if cred, err := s.keys.Get(ctx, userID, name); err != nil {
		slog.Warn("failed to load preferred model", "provider", name, "error", err)
	} else {
		model = cred.ModelOr(model)
	}

	p, err := s.build(name, s.options(name, key))
	if err != nil {
		if errors.Is(err, llm.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return &resolved{provider: p, name: name, model: model}, nil
}

func (s *AssistantService) request(r *resolved, prompt string) llm.Request {
	return llm.Request{
		Model:       r.model,
		Prompt:      prompt,
		Temperature: float32(s.cfg.Temperature),
		MaxTokens:   s.cfg.MaxTokens,
	}
}

// complete runs one blocking call and records its metrics.
func (s *AssistantService) complete(ctx context.Context, r *resolved, mode, prompt string) (string, error) {
	start := time.Now()
	text, err := r.provider.Complete(ctx, s.request(r, prompt))
	telemetry.AIRequestDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
	telemetry.AIRequestsTotal.WithLabelValues(r.name, mode, telemetry.StatusLabel(err)).Inc()
	if err != nil {
		return "", upstreamErr(err)
	}
	return text, nil
}

// upstreamErr wraps provider failures. A rejected key is the user's
// configuration problem rather than an outage.
func upstreamErr(err error) error {
	if llm.IsAuthError(err) {
		return fmt.Errorf("%w: provider rejected the API key: %w", ErrConfiguration, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func (req *AssistantRequest) validate() error {
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if req.Mode == "" {
		req.Mode = ModeWriter
	}
	if !ValidMode(req.Mode) {
		return fmt.Errorf("%w: unknown assistant mode %q", ErrValidation, req.Mode)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	return nil
}

// Generate returns the full completion for req.
func (s *AssistantService) Generate(ctx context.Context, userID string, req AssistantRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	r, err := s.resolve(ctx, userID, req.Provider)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, r, req.Mode, BuildPrompt(req.Mode, req.Context, req.Prompt))
}

// Stream returns the completion as chunks. The channel closes after a Done or
// Err chunk, or when ctx ends.
func (s *AssistantService) Stream(ctx context.Context, userID string, req AssistantRequest) (<-chan llm.StreamChunk, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	r, err := s.resolve(ctx, userID, req.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	upstream, err := r.provider.Stream(ctx, s.request(r, BuildPrompt(req.Mode, req.Context, req.Prompt)))
	if err != nil {
		telemetry.AIRequestsTotal.WithLabelValues(r.name, req.Mode, "error").Inc()
		return nil, upstreamErr(err)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		status := "error"
		defer func() {
			telemetry.AIRequestDuration.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
			telemetry.AIRequestsTotal.WithLabelValues(r.name, req.Mode, status).Inc()
		}()

		for chunk := range upstream {
			if chunk.Err != nil {
				chunk.Err = upstreamErr(chunk.Err)
			} else if chunk.Done {
				status = "ok"
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ChapterIdeas asks for an outline of n chapters. An answer that is not a JSON
// array of {title, description} falls back to numbered placeholder chapters.
func (s *AssistantService) ChapterIdeas(ctx context.Context, userID, provider, title, description string, n int) ([]ChapterIdea, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if n <= 0 {
		n = DefaultChapterIdeas
	}
	if n > MaxChapterIdeas {
		n = MaxChapterIdeas
	}

	r, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Create an outline for a book titled %q about %q.
Generate %d chapters with titles and brief descriptions.
Format the response as a JSON array of objects, each with 'title' and 'description' properties.
Make the titles engaging and the descriptions informative but concise.`, title, description, n)

	text, err := s.complete(ctx, r, ModeWriter, prompt)
	if err != nil {
		return nil, err
	}

	ideas, perr := parseChapterIdeas(text)
	if perr != nil {
		slog.Warn("assistant returned an unparseable outline, using placeholders", "provider", r.name, "error", perr)
		return placeholderIdeas(n), nil
	}
	return ideas, nil
}

// parseChapterIdeas extracts the JSON array from a completion, tolerating
// markdown fences and surrounding prose.
func parseChapterIdeas(text string) ([]ChapterIdea, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array in response")
	}

	var ideas []ChapterIdea
	if err := json.Unmarshal([]byte(text[start:end+1]), &ideas); err != nil {
		return nil, err
	}
	out := ideas[:0]
	for _, idea := range ideas {
		idea.Title = strings.TrimSpace(idea.Title)
		if idea.Title != "" {
			out = append(out, idea)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty outline")
	}
	return out, nil
}

func placeholderIdeas(n int) []ChapterIdea {
	ideas := make([]ChapterIdea, n)
	for i := range ideas {
		ideas[i] = ChapterIdea{
			Title:       fmt.Sprintf("Chapter %d", i+1),
			Description: "Chapter description will go here.",
		}
	}
	return ideas
}

// Improve rewrites text according to instruction.
func (s *AssistantService) Improve(ctx context.Context, userID, provider, text, instruction string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", ErrValidation)
	}
	if strings.TrimSpace(instruction) == "" {
		return "", fmt.Errorf("%w: instruction is required", ErrValidation)
	}

	r, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`Improve the following text according to this instruction: %q

Text to improve:
%q

Return only the improved text without any additional explanations.`, instruction, text)

	out, err := s.complete(ctx, r, ModeEditor, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// TestKey issues a minimal completion with key to check it before it is saved.
func (s *AssistantService) TestKey(ctx context.Context, provider, key, model string) error {
	name := NormalizeProvider(provider)
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: API key is required", ErrValidation)
	}
	p, err := s.build(name, s.options(name, key))
	if err != nil {
		if errors.Is(err, llm.ErrUnknownProvider) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if model == "" {
		model = s.defaultModel(name)
	}

	r := &resolved{provider: p, name: name, model: model}
	req := s.request(r, "Reply with the single word: ok")
	req.MaxTokens = 5
	start := time.Now()
	_, err = p.Complete(ctx, req)
	telemetry.AIRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	telemetry.AIRequestsTotal.WithLabelValues(name, "test", telemetry.StatusLabel(err)).Inc()
	if err != nil {
		return upstreamErr(err)
	}
	return nil
}

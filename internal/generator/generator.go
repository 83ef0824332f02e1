// Package generator calls the external generative collaborator: an assembled
// text request goes in, raw JSON comes out. It never interprets the JSON.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"alcyxob/run-coach/internal/config"
)

var (
	ErrTimeout       = errors.New("generator timed out")
	ErrEmptyResponse = errors.New("generator returned no content")
	ErrUnavailable   = errors.New("generator unavailable")
)

// Generator turns an assembled request into raw JSON bytes.
type Generator interface {
	Generate(ctx context.Context, request string) ([]byte, error)
}

const systemPrompt = "You are a running coach. Reply with exactly one JSON object and nothing else."

// OpenAI is a Generator backed by the chat completions API of OpenAI or any
// compatible endpoint.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI builds the client from configuration. Extra request options are
// appended after the configured ones.
func NewOpenAI(cfg config.OpenAIConfig, logger *slog.Logger, extra ...option.RequestOption) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate sends one chat completion bounded by the configured timeout.
// Callers must not hold a database transaction across this call.
func (g *OpenAI) Generate(ctx context.Context, request string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(request),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.2),
	}

	start := time.Now()
	g.logger.DebugContext(ctx, "sending generation request", "model", g.model, "request_bytes", len(request))

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, g.classify(ctx, err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	g.logger.InfoContext(ctx, "generation completed",
		"model", g.model,
		"duration", time.Since(start),
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens)

	return []byte(ExtractJSON(completion.Choices[0].Message.Content)), nil
}

func (g *OpenAI) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		g.logger.WarnContext(ctx, "generation timed out", "timeout", g.timeout)
		return fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		g.logger.ErrorContext(ctx, "generation failed", "status", apiErr.StatusCode, "error", err)
		return fmt.Errorf("%w: status %d", ErrUnavailable, apiErr.StatusCode)
	}
	g.logger.ErrorContext(ctx, "generation failed", "error", err)
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// ExtractJSON strips a Markdown code fence wrapped around a reply. Anything
// else is returned trimmed but otherwise untouched; the validator decides
// whether it is acceptable.
func ExtractJSON(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

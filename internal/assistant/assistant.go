// Package assistant asks a hosted language model study questions and turns
// its answers into quizzes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// ErrEmptyPrompt rejects blank questions before any request is made.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Completer produces a text reply to a prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Anthropic is a Completer backed by the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a Completer. An empty model selects DefaultModel.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 2048,
	}
}

func (a *Anthropic) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to query model: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Assistant answers questions and builds quizzes.
type Assistant struct {
	completer Completer
	logger    *slog.Logger
}

// New creates an Assistant. logger may be nil.
func New(c Completer, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{completer: c, logger: logger}
}

const askSystem = "You are Brain AI, a study assistant for university students. Answer clearly and concisely."

// Ask returns the model's free-form answer to prompt.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	a.logger.Debug("Asking assistant", "chars", len(prompt))
	return a.completer.Complete(ctx, askSystem, prompt)
}

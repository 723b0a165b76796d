package ai

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// claudeProvider wraps the official SDK instead of a hand-rolled HTTP client;
// SDK errors are remapped into the shared failure taxonomy.
type claudeProvider struct {
	cfg    ProviderConfig
	client anthropic.Client
}

func newClaudeProvider(cfg ProviderConfig) *claudeProvider {
	return &claudeProvider{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}
}

func (p *claudeProvider) Name() string { return string(ProviderClaude) }

func (p *claudeProvider) IsAvailable() bool { return p.cfg.APIKey != "" }

func (p *claudeProvider) SendPrompt(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		MaxTokens:   int64(p.cfg.MaxTokens),
		Temperature: anthropic.Float(p.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", timeoutError(p.Name(), p.cfg.Timeout)
		}
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return "", statusError(p.Name(), apierr.StatusCode, apierr.Error())
		}
		return "", &ProviderError{Provider: p.Name(), Kind: ErrorUpstream, Message: err.Error()}
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Kind: ErrorMalformed, Message: "response contains no text blocks"}
	}
	return text, nil
}

package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/majiayu000/remem/internal/config"
)

// httpExecutor dispatches a single non-streaming completion call over the
// Anthropic HTTP API, grounded in the teacher's adapter/claude.go. Unlike
// the teacher's chat adapter, the Distiller and Summarizer never need a
// streaming channel — they only want the final structured text — so this
// is a single blocking call rather than a callback-fed chunk stream.
type httpExecutor struct {
	client *anthropic.Client
	model  string
}

func newHTTPExecutor(cfg config.Config) *httpExecutor {
	key := cfg.AnthropicAPIKey
	if key == "" {
		key = cfg.AnthropicAuthTok
	}

	opts := []anthropic.ClientOption{}
	if cfg.AnthropicBaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.AnthropicBaseURL))
	}

	client := anthropic.NewClient(key, opts...)
	return &httpExecutor{client: client, model: cfg.Model}
}

func (h *httpExecutor) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = h.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := h.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.UserMessage),
		},
		System:    req.SystemPrompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("llm: anthropic completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	return CompletionResult{
		Text:         text,
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
	}, nil
}

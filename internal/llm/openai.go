package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/majiayu000/remem/internal/config"
)

// openAIExecutor is the fallback HTTP path when only an OpenAI key is
// configured, grounded in the teacher's adapter/openai.go. Model aliases
// resolved for Anthropic (haiku/sonnet/opus) have no meaning here, so the
// caller is expected to pass an OpenAI model id directly via
// CLAUDE_MEM_MODEL when running in this mode.
type openAIExecutor struct {
	client *openai.Client
	model  string
}

func newOpenAIExecutor(cfg config.Config) *openAIExecutor {
	client := openai.NewClient(cfg.OpenAIAPIKey)
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIExecutor{client: client, model: model}
}

func (o *openAIExecutor) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("llm: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("llm: openai completion: empty response")
	}

	return CompletionResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

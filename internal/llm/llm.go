// Package llm provides the black-box LM completion call the Distiller and
// Summarizer treat as an external collaborator: a single request/response
// with a caller-supplied timeout, dispatched per the configured executor
// mode (auto/http/cli).
package llm

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/majiayu000/remem/internal/config"
)

// CompletionRequest is one completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
}

// CompletionResult carries the LM's text plus its reported token cost,
// which becomes a Memory's or Summary's discovery_tokens field.
type CompletionResult struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// TotalTokens is the "discovery-token cost" the data model stores.
func (r CompletionResult) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens
}

// Executor is the black-box completion call.
type Executor interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// New builds an Executor per cfg.ExecutorMode. "auto" tries HTTP first and
// falls back to the CLI executor if no API key is configured; "http" and
// "cli" pin to one path explicitly.
func New(cfg config.Config) Executor {
	switch cfg.ExecutorMode {
	case config.ExecutorCLI:
		return &cliExecutor{binPath: cfg.CLIPath}
	case config.ExecutorHTTP:
		return newHTTPExecutor(cfg)
	default:
		switch {
		case cfg.AnthropicAPIKey != "" || cfg.AnthropicAuthTok != "":
			return newHTTPExecutor(cfg)
		case cfg.OpenAIAPIKey != "":
			return newOpenAIExecutor(cfg)
		default:
			return &cliExecutor{binPath: cfg.CLIPath}
		}
	}
}

// cliExecutor shells out to a locally installed CLI (e.g. the `claude` or
// `anthropic` binary) as a fallback when no API key is configured, grounded
// in the original's CLI executor mode.
type cliExecutor struct {
	binPath string
}

func (c *cliExecutor) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	bin := c.binPath
	if bin == "" {
		bin = "claude"
	}
	cmd := exec.CommandContext(ctx, bin, "-p", req.UserMessage)
	if req.SystemPrompt != "" {
		cmd.Args = append(cmd.Args, "--system", req.SystemPrompt)
	}
	out, err := cmd.Output()
	if err != nil {
		return CompletionResult{}, fmt.Errorf("llm: cli executor: %w", err)
	}
	text := strings.TrimSpace(string(out))

	// The CLI path never reports real usage, so discovery_tokens falls back
	// to a local cl100k_base estimate instead of going to zero.
	in, outTok := estimateTokens(req.SystemPrompt + req.UserMessage), estimateTokens(text)
	return CompletionResult{Text: text, InputTokens: in, OutputTokens: outTok}, nil
}

func estimateTokens(s string) int64 {
	if s == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return int64(len(s) / 4)
	}
	return int64(len(enc.Encode(s, nil, nil)))
}

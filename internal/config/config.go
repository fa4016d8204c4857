// Package config resolves remem's environment-driven configuration, with an
// optional ~/.config/remem/config.toml overlay for values a user wants to
// pin without exporting env vars in every shell.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ExecutorMode selects how LM completion calls are dispatched.
type ExecutorMode string

const (
	ExecutorAuto ExecutorMode = "auto"
	ExecutorHTTP ExecutorMode = "http"
	ExecutorCLI  ExecutorMode = "cli"
)

// Config is the effective, fully-resolved configuration for one process.
type Config struct {
	DataDir string

	AnthropicAPIKey   string
	AnthropicAuthTok  string
	AnthropicBaseURL  string
	OpenAIAPIKey      string
	Model             string
	ExecutorMode      ExecutorMode
	CLIPath           string

	Debug        bool
	LogMaxBytes  int64

	MinPending      int
	CooldownSecs    int64

	Context ContextConfig
}

// ContextConfig holds the §4.E rendering defaults, overridable via env vars.
type ContextConfig struct {
	Total       int
	Full        int
	Sessions    int
	Kinds       []string
	ShowTokens  bool
}

// fileOverlay mirrors the optional TOML file; only fields present override
// the defaults computed before env vars are applied.
type fileOverlay struct {
	Model        string   `toml:"model"`
	ExecutorMode string   `toml:"executor_mode"`
	ContextTotal int      `toml:"context_total"`
	ContextFull  int      `toml:"context_full"`
	ContextKinds []string `toml:"context_kinds"`
}

var modelAliases = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
	"opus":   "claude-opus-4-1-20250805",
}

// Load resolves configuration in the documented precedence: built-in
// defaults, then the optional TOML overlay, then environment variables.
func Load() Config {
	cfg := Config{
		DataDir:      defaultDataDir(),
		Model:        "claude-sonnet-4-5-20250929",
		ExecutorMode: ExecutorAuto,
		LogMaxBytes:  10 * 1024 * 1024,
		MinPending:   3,
		CooldownSecs: 300,
		Context: ContextConfig{
			Total:      50,
			Full:       10,
			Sessions:   10,
			Kinds:      []string{"bugfix", "feature", "refactor", "discovery", "decision", "change"},
			ShowTokens: true,
		},
	}

	applyOverlay(&cfg)
	applyEnv(&cfg)
	return cfg
}

func defaultDataDir() string {
	if v := os.Getenv("REMEM_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".remem"
	}
	return filepath.Join(home, ".remem")
}

// ConfigPath returns the path to the optional TOML overlay file.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "remem", "config.toml"), nil
}

func applyOverlay(cfg *Config) {
	path, err := ConfigPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	var overlay fileOverlay
	if _, err := toml.DecodeFile(path, &overlay); err != nil {
		return
	}
	if overlay.Model != "" {
		cfg.Model = overlay.Model
	}
	if overlay.ExecutorMode != "" {
		cfg.ExecutorMode = ExecutorMode(overlay.ExecutorMode)
	}
	if overlay.ContextTotal > 0 {
		cfg.Context.Total = overlay.ContextTotal
	}
	if overlay.ContextFull > 0 {
		cfg.Context.Full = overlay.ContextFull
	}
	if len(overlay.ContextKinds) > 0 {
		cfg.Context.Kinds = overlay.ContextKinds
	}
}

func applyEnv(cfg *Config) {
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AnthropicAuthTok = os.Getenv("ANTHROPIC_AUTH_TOKEN")
	cfg.AnthropicBaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if v := os.Getenv("CLAUDE_MEM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CLAUDE_MEM_MODEL_ALIAS"); v != "" {
		if id, ok := modelAliases[v]; ok {
			cfg.Model = id
		}
	}
	if v := os.Getenv("CM_EXECUTOR_MODE"); v != "" {
		cfg.ExecutorMode = ExecutorMode(v)
	}
	if v := os.Getenv("CLAUDE_MEM_CLI_PATH"); v != "" {
		cfg.CLIPath = v
	}

	if v := os.Getenv("REMEM_DEBUG"); v != "" {
		cfg.Debug = v != "0" && v != "false"
	}
	if v := os.Getenv("REMEM_LOG_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.LogMaxBytes = n
		}
	}
	if v := os.Getenv("REMEM_MIN_PENDING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MinPending = n
		}
	}
	if v := os.Getenv("REMEM_SUMMARIZE_COOLDOWN_SECS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.CooldownSecs = n
		}
	}

	if v := os.Getenv("CLAUDE_MEM_CONTEXT_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Context.Total = n
		}
	}
	if v := os.Getenv("CLAUDE_MEM_CONTEXT_FULL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Context.Full = n
		}
	}
	if v := os.Getenv("CLAUDE_MEM_CONTEXT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Context.Sessions = n
		}
	}
	if v := os.Getenv("CLAUDE_MEM_CONTEXT_KINDS"); v != "" {
		var kinds []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, k)
			}
		}
		if len(kinds) > 0 {
			cfg.Context.Kinds = kinds
		}
	}
	if v := os.Getenv("CLAUDE_MEM_CONTEXT_SHOW_TOKENS"); v != "" {
		cfg.Context.ShowTokens = v != "0" && v != "false"
	}
}

// DBPath returns the path to the sqlite database file within DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "remem.db")
}

// LogPath returns the path to the rotated log file within DataDir.
func (c Config) LogPath() string {
	return filepath.Join(c.DataDir, "remem.log")
}

// ResolveModel maps a bare alias to a vendor model id, passing full ids through.
func ResolveModel(alias string) string {
	if id, ok := modelAliases[alias]; ok {
		return id
	}
	return alias
}

func (c Config) String() string {
	return fmt.Sprintf("Config{DataDir:%s Model:%s ExecutorMode:%s}", c.DataDir, c.Model, c.ExecutorMode)
}

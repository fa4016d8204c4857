package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMEM_DATA_DIR", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_MEM_MODEL", "")
	t.Setenv("CM_EXECUTOR_MODE", "")

	cfg := Load()
	if cfg.ExecutorMode != ExecutorAuto {
		t.Fatalf("executor mode = %s, want auto", cfg.ExecutorMode)
	}
	if cfg.MinPending != 3 {
		t.Fatalf("min pending = %d, want 3", cfg.MinPending)
	}
	if cfg.CooldownSecs != 300 {
		t.Fatalf("cooldown secs = %d, want 300", cfg.CooldownSecs)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CLAUDE_MEM_MODEL", "claude-opus-4-1-20250805")
	t.Setenv("CM_EXECUTOR_MODE", "http")
	t.Setenv("REMEM_MIN_PENDING", "7")
	t.Setenv("CLAUDE_MEM_CONTEXT_TOTAL", "25")

	cfg := Load()
	if cfg.Model != "claude-opus-4-1-20250805" {
		t.Fatalf("model = %s", cfg.Model)
	}
	if cfg.ExecutorMode != ExecutorHTTP {
		t.Fatalf("executor mode = %s, want http", cfg.ExecutorMode)
	}
	if cfg.MinPending != 7 {
		t.Fatalf("min pending = %d, want 7", cfg.MinPending)
	}
	if cfg.Context.Total != 25 {
		t.Fatalf("context total = %d, want 25", cfg.Context.Total)
	}
}

func TestLoadEnvAliasResolvesModel(t *testing.T) {
	t.Setenv("CLAUDE_MEM_MODEL", "")
	t.Setenv("CLAUDE_MEM_MODEL_ALIAS", "haiku")

	cfg := Load()
	if cfg.Model != "claude-haiku-4-5-20251001" {
		t.Fatalf("model = %s, want resolved haiku alias", cfg.Model)
	}
}

func TestResolveModelPassesThroughUnknownAlias(t *testing.T) {
	if got := ResolveModel("claude-custom-id"); got != "claude-custom-id" {
		t.Fatalf("resolve model = %s, want passthrough", got)
	}
}

func TestDBPathAndLogPathUnderDataDir(t *testing.T) {
	cfg := Config{DataDir: "/tmp/remem-test"}
	if cfg.DBPath() != "/tmp/remem-test/remem.db" {
		t.Fatalf("db path = %s", cfg.DBPath())
	}
	if cfg.LogPath() != "/tmp/remem-test/remem.log" {
		t.Fatalf("log path = %s", cfg.LogPath())
	}
}

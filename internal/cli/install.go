package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/config"
)

func settingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func hookEntry(bin, subcommand string, timeoutMs int, matcher string) map[string]any {
	entry := map[string]any{
		"hooks": []any{
			map[string]any{
				"type":    "command",
				"command": fmt.Sprintf("%s %s", bin, subcommand),
				"timeout": timeoutMs,
			},
		},
	}
	if matcher != "" {
		entry["matcher"] = matcher
	}
	return entry
}

func isRememHookEntry(entry any, bin string) bool {
	m, ok := entry.(map[string]any)
	if !ok {
		return false
	}
	hooks, ok := m["hooks"].([]any)
	if !ok {
		return false
	}
	for _, h := range hooks {
		hm, ok := h.(map[string]any)
		if !ok {
			continue
		}
		cmd, _ := hm["command"].(string)
		if strings.Contains(cmd, bin) || strings.Contains(cmd, "remem") {
			return true
		}
	}
	return false
}

func removeRememHooks(settings map[string]any, bin string) {
	hooksAny, ok := settings["hooks"]
	if !ok {
		return
	}
	hooks, ok := hooksAny.(map[string]any)
	if !ok {
		return
	}
	for event, entriesAny := range hooks {
		entries, ok := entriesAny.([]any)
		if !ok {
			continue
		}
		var kept []any
		for _, entry := range entries {
			if !isRememHookEntry(entry, bin) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(hooks, event)
		} else {
			hooks[event] = kept
		}
	}
	if len(hooks) == 0 {
		delete(settings, "hooks")
	}
}

func removeRememMCP(settings map[string]any, bin string) {
	serversAny, ok := settings["mcpServers"]
	if !ok {
		return
	}
	servers, ok := serversAny.(map[string]any)
	if !ok {
		return
	}
	for name, entry := range servers {
		if name == "remem" {
			delete(servers, name)
			continue
		}
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		cmd, _ := m["command"].(string)
		if strings.Contains(cmd, bin) || strings.Contains(cmd, "remem") {
			delete(servers, name)
		}
	}
	if len(servers) == 0 {
		delete(settings, "mcpServers")
	}
}

// newInstallCmd wires remem's hooks and MCP server into
// ~/.claude/settings.json, replacing any prior remem entries first so
// re-running install after an upgrade is idempotent.
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install hooks and the MCP server into ~/.claude/settings.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.Executable()
			if err != nil {
				return fmt.Errorf("install: resolve binary path: %w", err)
			}

			path, err := settingsPath()
			if err != nil {
				return fmt.Errorf("install: %w", err)
			}
			settings, err := readSettings(path)
			if err != nil {
				return fmt.Errorf("install: %w", err)
			}

			removeRememHooks(settings, bin)
			removeRememMCP(settings, bin)

			hooks, _ := settings["hooks"].(map[string]any)
			if hooks == nil {
				hooks = map[string]any{}
			}
			appendHook := func(event, subcommand string, timeoutMs int, matcher string) {
				existing, _ := hooks[event].([]any)
				hooks[event] = append(existing, hookEntry(bin, subcommand, timeoutMs, matcher))
			}
			appendHook("SessionStart", "context", 15000, "")
			appendHook("UserPromptSubmit", "session-init", 15000, "")
			appendHook("PostToolUse", "observe", 120000, "Write|Edit|NotebookEdit|Bash")
			appendHook("Stop", "summarize", 120000, "")
			settings["hooks"] = hooks

			servers, _ := settings["mcpServers"].(map[string]any)
			if servers == nil {
				servers = map[string]any{}
			}
			servers["remem"] = map[string]any{
				"command": bin,
				"args":    []any{"mcp"},
			}
			settings["mcpServers"] = servers

			if err := writeSettings(path, settings); err != nil {
				return fmt.Errorf("install: write settings: %w", err)
			}

			dataDir := config.Load().DataDir
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("install: create data dir: %w", err)
			}

			fmt.Println("remem install complete:")
			fmt.Printf("  hooks + MCP -> %s\n", path)
			fmt.Printf("  data dir    -> %s\n", dataDir)
			fmt.Printf("  binary      -> %s\n", bin)
			return nil
		},
	}
}

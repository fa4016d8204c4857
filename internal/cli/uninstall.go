package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/config"
)

// newUninstallCmd removes remem's hooks and MCP server entries from
// ~/.claude/settings.json, leaving the data directory untouched.
func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove hooks and the MCP server from ~/.claude/settings.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.Executable()
			if err != nil {
				return fmt.Errorf("uninstall: resolve binary path: %w", err)
			}

			path, err := settingsPath()
			if err != nil {
				return fmt.Errorf("uninstall: %w", err)
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("settings.json does not exist, nothing to clean up.")
				return nil
			}

			settings, err := readSettings(path)
			if err != nil {
				return fmt.Errorf("uninstall: %w", err)
			}

			removeRememHooks(settings, bin)
			removeRememMCP(settings, bin)

			if err := writeSettings(path, settings); err != nil {
				return fmt.Errorf("uninstall: write settings: %w", err)
			}

			fmt.Println("remem uninstall complete:")
			fmt.Printf("  removed hooks + MCP from %s\n", path)
			fmt.Printf("  data dir %s left untouched\n", config.Load().DataDir)
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/capture"
	"github.com/majiayu000/remem/internal/mcpserver"
)

// newMCPCmd runs the long-lived Query Server over stdio. The host starts
// one instance per project; project scope is derived from the process's
// working directory at startup, same as every hook subcommand.
func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mcp",
		Short:  "Run the MCP server (stdio transport)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("mcp: getwd: %w", err)
			}
			project := capture.ProjectFromCWD(cwd)

			srv := mcpserver.New(e.store, project, version)
			e.logger.Info("mcp: serving", "project", project)
			return mcpserver.ServeStdio(srv)
		},
	}
}

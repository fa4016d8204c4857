// Package cli defines the Cobra command tree for the remem CLI. Every
// hook-facing subcommand (context, session-init, observe, summarize) must
// exit 0 regardless of internal failure — the host treats a nonzero exit
// as a broken hook and disables it for the rest of the session.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "remem",
	Short: "Persistent, cross-session memory for AI coding agents",
	Long: `remem gives a coding agent a memory of what happened in past sessions on
this project: what was discovered, decided, fixed, and changed.

It hooks into the host agent's lifecycle events (session start, tool use,
session stop) to capture activity automatically, distills it into structured
observations in the background, and injects a relevant summary into every
new session. An MCP server exposes the same memory for mid-session search.

Run 'remem install' once to wire the hooks and MCP server into
~/.claude/settings.json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		newContextCmd(),
		newSessionInitCmd(),
		newObserveCmd(),
		newSummarizeCmd(),
		newSummarizeWorkerCmd(),
		newMCPCmd(),
		newInstallCmd(),
		newUninstallCmd(),
		newFlushCmd(),
		newCleanupCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("remem %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

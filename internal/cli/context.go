package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/capture"
	"github.com/majiayu000/remem/internal/contextrender"
)

// newContextCmd implements the SessionStart hook: render the project's
// memory as markdown on stdout, which the host injects as additional
// context for the new session.
func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "context",
		Short:  "SessionStart hook: print this project's memory context",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			e, err := openEnv()
			if err != nil {
				os.Exit(0)
			}

			in, err := readHookInput(os.Stdin)
			if err != nil {
				exitHookOK(e, err)
			}

			project := capture.ProjectFromCWD(in.CWD)
			opts := contextrender.DefaultOptions()
			opts.TotalMemories = e.cfg.Context.Total
			opts.FullCount = e.cfg.Context.Full
			opts.SessionCount = e.cfg.Context.Sessions
			opts.Kinds = e.cfg.Context.Kinds
			opts.ShowReadTokens = e.cfg.Context.ShowTokens
			opts.ShowWorkTokens = e.cfg.Context.ShowTokens

			rendered, err := contextrender.Render(e.store, project, opts)
			if err != nil {
				e.logger.Error("context: render failed", "err", err)
				exitHookOK(e, err)
			}

			fmt.Print(rendered)
			exitHookOK(e, nil)
		},
	}
}

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/capture"
)

// newObserveCmd implements the PostToolUse hook: queue the event to
// SQLite, no LM call, must return in well under the host's timeout.
func newObserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "observe",
		Short:  "PostToolUse hook: queue a tool-use event for later distillation",
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

			captured, err := capture.Capture(e.store, capture.ToolEvent{
				SessionID:    in.SessionID,
				CWD:          in.CWD,
				ToolName:     in.ToolName,
				ToolInput:    string(in.ToolInput),
				ToolResponse: string(in.ToolResponse),
				BashCommand:  in.bashCommand(),
			})
			if err != nil {
				e.logger.Error("observe: capture failed", "err", err)
			} else {
				e.logger.Info("observe", "tool", in.ToolName, "captured", captured)
			}

			exitHookOK(e, nil)
		},
	}
}

package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/summarize"
)

const workerHardCap = 180 * time.Second

// newSummarizeWorkerCmd is the detached worker `summarize` spawns: it reads
// the assistant's message from stdin, does the real atomic cooldown
// acquire (the dispatcher only peeked), distills any pending events, and
// upserts the session summary. It is never invoked directly by a hook.
func newSummarizeWorkerCmd() *cobra.Command {
	var sessionID, project string

	cmd := &cobra.Command{
		Use:    "summarize-worker",
		Short:  "Detached worker: runs the distiller and summarizer for one session",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			e, err := openEnv()
			if err != nil {
				os.Exit(1)
			}
			defer e.Close()

			messageBytes, _ := io.ReadAll(os.Stdin)
			message := string(messageBytes)

			ctx, cancel := context.WithTimeout(context.Background(), workerHardCap)
			defer cancel()
			// Hard kill at the cap, even if a call in progress ignores ctx.
			time.AfterFunc(workerHardCap, func() { os.Exit(1) })

			memoryID, _, err := e.store.GetOrCreateSession(sessionID, project)
			if err != nil {
				e.logger.Error("summarize-worker: get session failed", "err", err)
				return
			}

			if err := summarize.RunWorker(ctx, e.store, e.executor(), sessionID, memoryID, project, message, e.cfg.CooldownSecs); err != nil {
				e.logger.Error("summarize-worker: run failed", "err", err)
				return
			}
			e.logger.Info("summarize-worker: done", "session", sessionID, "project", project)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "host session ID")
	cmd.Flags().StringVar(&project, "project", "", "project scope")

	return cmd
}

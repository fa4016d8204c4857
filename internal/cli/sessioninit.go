package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/capture"
	"github.com/majiayu000/remem/internal/distill"
)

// pendingRecoveryAge is how old the session's oldest pending row may get
// before session-init treats the queue as abandoned (the prior summarize attempt likely
// crashed or timed out) and flushes it itself rather than waiting for the
// next summarize to happen to pick it up.
const pendingRecoveryAge = 10 * time.Minute

// newSessionInitCmd implements the UserPromptSubmit hook: register the
// session, recover any abandoned pending leases from a crashed worker, and
// flush pending events that have sat unprocessed past pendingRecoveryAge.
func newSessionInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "session-init",
		Short:  "UserPromptSubmit hook: register the session and recover stale pending events",
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
			memorySessionID, _, err := e.store.GetOrCreateSession(in.SessionID, project)
			if err != nil {
				e.logger.Error("session-init: upsert session failed", "err", err)
			}

			released, err := e.store.ReleasePendingClaims(in.SessionID)
			if err != nil {
				e.logger.Error("session-init: release claims failed", "err", err)
			} else if released > 0 {
				e.logger.Info("session-init: released abandoned leases", "count", released)
			}

			age, ok, err := e.store.OldestPendingAgeSecs(in.SessionID, time.Now())
			if err != nil {
				e.logger.Error("session-init: check pending age failed", "err", err)
			} else if ok && age >= int64(pendingRecoveryAge.Seconds()) {
				result, err := distill.Distill(context.Background(), e.store, e.executor(), in.SessionID, memorySessionID, project)
				if err != nil {
					e.logger.Error("session-init: recovery flush failed", "err", err)
				} else if result.Claimed > 0 {
					e.logger.Info("session-init: recovery flush", "claimed", result.Claimed, "inserted", len(result.Inserted))
				}
			}

			exitHookOK(e, nil)
		},
	}
}

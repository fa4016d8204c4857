package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majiayu000/remem/internal/distill"
)

// newFlushCmd runs one Distill batch synchronously for a given session and
// project, mirroring the manual `flush --session-id --project` escape
// hatch for debugging a stuck pending queue outside of a live hook.
func newFlushCmd() *cobra.Command {
	var sessionID, project string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Manually distill one session's pending queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			memoryID, _, err := e.store.GetOrCreateSession(sessionID, project)
			if err != nil {
				return fmt.Errorf("flush: get session: %w", err)
			}

			result, err := distill.Distill(context.Background(), e.store, e.executor(), sessionID, memoryID, project)
			if err != nil {
				return fmt.Errorf("flush: distill: %w", err)
			}

			fmt.Printf("claimed=%d inserted=%d staled=%d compacted=%v\n",
				result.Claimed, len(result.Inserted), result.Staled, result.Compacted)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "host session ID")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	cmd.MarkFlagRequired("session-id")
	cmd.MarkFlagRequired("project")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCleanupCmd removes orphaned summaries, duplicate summaries, and
// long-expired pending rows that accumulate over time.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned summaries, duplicate summaries, and stale pending rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			stats, err := e.store.Cleanup()
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			fmt.Println("cleanup complete:")
			fmt.Printf("  orphan summaries:    %d\n", stats.OrphanSummaries)
			fmt.Printf("  duplicate summaries: %d\n", stats.DuplicateSummaries)
			fmt.Printf("  stale pending:       %d\n", stats.StalePending)
			fmt.Printf("  aged compressed:     %d\n", stats.AgedCompressed)
			fmt.Printf("  expired leases:      %d\n", stats.ExpiredLeases)
			return nil
		},
	}
}

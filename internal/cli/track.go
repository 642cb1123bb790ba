package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	trackSession string
	trackTimeout time.Duration
)

var trackCmd = &cobra.Command{
	Use:   "track <page>...",
	Short: "Record page views and deliver them",
	Long: `Record one page view per argument in the current session, then deliver the
queue before exiting. Events that cannot be delivered stay in the offline
queue when it is enabled and are retried by the next run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackSession, "session", "", "session id to record the pages under (generated when empty)")
	trackCmd.Flags().DurationVar(&trackTimeout, "timeout", 30*time.Second, "how long to wait for delivery")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.checkQueueOwner(); err != nil {
		return err
	}

	t, err := env.newTracker()
	if err != nil {
		return err
	}
	defer t.Destroy()

	if trackSession != "" {
		if err := t.SetSessionID(trackSession); err != nil {
			return err
		}
	}

	for _, page := range args {
		if err := t.TrackPage(page); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), trackTimeout)
	defer cancel()

	flushErr := t.Flush(ctx)

	stats, err := t.Stats()
	if err != nil {
		return err
	}

	if flushErr != nil {
		if env.cfg.OfflineQueue && stats.Queued > 0 {
			cmd.Printf("%d event(s) kept in the offline queue\n", stats.Queued)
		}
		return fmt.Errorf("delivery incomplete: %w", flushErr)
	}

	cmd.Printf("Tracked %d page(s) in session %s\n", len(args), stats.SessionID)
	return nil
}

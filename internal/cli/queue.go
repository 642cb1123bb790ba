package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/paondev/tapakasih/pkg/eventstore"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	queueFlush bool
	queueJSON  bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or flush the offline queue",
	Long: `List the events waiting in the offline queue, oldest first. With --flush the
queue is delivered instead; this is refused while the agent is running since
the agent delivers its own queue.`,
	Args: cobra.NoArgs,
	RunE: runQueue,
}

func init() {
	queueCmd.Flags().BoolVar(&queueFlush, "flush", false, "deliver queued events now")
	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "print events as JSON")
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	if !cfg.OfflineQueue {
		cmd.Println("Offline queue is disabled.")
		return nil
	}

	if queueFlush {
		return flushQueue(cmd, env)
	}

	store, err := eventstore.Open(eventstore.Options{
		Durable:     true,
		Path:        cfg.QueuePath(),
		MaxAttempts: cfg.RetryAttempts,
		Logger:      env.logger(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	events := store.Snapshot()

	if queueJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode events: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(events) == 0 {
		cmd.Println("Offline queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT ID\tSESSION\tPAGE\tRECORDED\tATTEMPTS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			e.ID, e.SessionID, e.PageName, e.Time().Format(time.RFC3339), e.Attempts)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	cmd.Printf("%d event(s) queued\n", len(events))
	return nil
}

func flushQueue(cmd *cobra.Command, env *environment) error {
	if err := env.checkQueueOwner(); err != nil {
		return err
	}

	t, err := env.newTracker()
	if err != nil {
		return err
	}
	defer t.Destroy()

	ctx, cancel := context.WithTimeout(cmd.Context(), env.cfg.Delivery.RequestTimeout)
	defer cancel()

	if err := t.Flush(ctx); err != nil {
		return err
	}

	stats, err := t.Stats()
	if err != nil {
		return err
	}
	cmd.Printf("Queue flushed, %d event(s) remaining\n", stats.Queued)
	return nil
}

// countQueued reports the number of events held in the queue database at path
func countQueued(path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}

	store, err := eventstore.Open(eventstore.Options{
		Durable: true,
		Path:    path,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		return 0, err
	}
	defer store.Close()

	return store.Len(), nil
}

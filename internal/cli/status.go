package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Long:  `Show whether the tracking agent is running and how many events are queued.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := pidFilePath(cfg.DataDir)

	if !isRunning(pidFile) {
		cmd.Println("Status: stopped")
	} else {
		pid, err := readPID(pidFile)
		if err != nil {
			return fmt.Errorf("failed to read PID file: %w", err)
		}

		cmd.Println("Status: running")
		cmd.Printf("PID: %d\n", pid)

		// PID file modification time approximates the start time
		if info, err := os.Stat(pidFile); err == nil {
			cmd.Printf("Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
		}
	}

	if !cfg.OfflineQueue {
		cmd.Println("Offline queue: disabled")
		return nil
	}

	count, err := countQueued(cfg.QueuePath())
	if err != nil {
		return err
	}
	cmd.Printf("Offline queue: %d event(s) at %s\n", count, cfg.QueuePath())
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

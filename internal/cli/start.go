package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/paondev/tapakasih/pkg/tracker"
	"github.com/spf13/cobra"
)

const pidFileName = "tapakasih.pid"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the tracking agent",
	Long: `Run the tracking agent in the foreground. Screen names are read from standard
input, one per line, and recorded as page views; a line repeating the current
screen is ignored. Lines starting with ':' are agent commands:

  :session <id>   switch to the given session id
  :clear          drop the session id; the next page starts a new one
  :show           print the current session id
  :flush          deliver the queue now
  :stats          print queue statistics

The agent stops on SIGINT, SIGTERM or end of input.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	pidFile := pidFilePath(env.cfg.DataDir)
	if isRunning(pidFile) {
		return fmt.Errorf("agent is already running (PID file: %s)", pidFile)
	}
	if err := writePIDFile(pidFile); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	out := cmd.OutOrStdout()
	t, err := env.newTracker(tracker.WithPresenter(tracker.PresenterFunc(func(id string) {
		fmt.Fprintf(out, "Session: %s\n", id)
	})))
	if err != nil {
		return err
	}
	defer t.Destroy()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := env.logger()
	log.Info().Int("pid", os.Getpid()).Msg("Agent started")

	a := &agent{t: t, screens: tracker.NewScreenTracker(t), out: out}
	lines := readLines(ctx, cmd.InOrStdin())

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if err := a.handle(ctx, line); err != nil {
				log.Warn().Err(err).Str("input", line).Msg("Command failed")
			}
		}
	}

	log.Info().Msg("Agent stopping")

	flushCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Delivery.ShutdownTimeout)
	defer cancel()
	if err := t.Flush(flushCtx); err != nil {
		log.Warn().Err(err).Msg("Final delivery incomplete")
	}

	return nil
}

// agent applies stdin lines to a tracker
type agent struct {
	t       *tracker.Tracker
	screens *tracker.ScreenTracker
	out     io.Writer
}

func (a *agent) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ":") {
		return a.screens.Resumed(line)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	switch name {
	case "session":
		return a.t.SetSessionID(strings.TrimSpace(arg))
	case "clear":
		return a.t.ClearSessionID()
	case "show":
		return a.t.ShowSessionDialog()
	case "flush":
		return a.t.Flush(ctx)
	case "stats":
		stats, err := a.t.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "queued=%d pending=%d tracking=%t paused=%t\n",
			stats.Queued, stats.Pending, stats.TrackingEnabled, stats.DeliveryPaused)
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

// readLines streams r line by line until EOF or ctx is done
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func pidFilePath(dataDir string) string {
	if dataDir == "" {
		return filepath.Join(os.TempDir(), pidFileName)
	}
	return filepath.Join(dataDir, pidFileName)
}

func writePIDFile(pidFile string) error {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0700); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so probe with signal 0
	return process.Signal(syscall.Signal(0)) == nil
}

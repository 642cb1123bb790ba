package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paondev/tapakasih/pkg/token"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and prompting on out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for the settings an embedding application would pass to
// Initialize, starting from base
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := *base
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== TapakAsih Configuration ===")
	fmt.Fprintln(w.out)

	// Developer token
	for {
		fmt.Fprint(w.out, "Developer token: ")
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if err := token.Validate(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.DeveloperToken = raw
		if info, ok := token.Peek(raw); ok && !info.ExpiresAt.IsZero() {
			fmt.Fprintf(w.out, "Token expires at %s\n", info.ExpiresAt.Format("2006-01-02 15:04 MST"))
		}
		break
	}

	// Endpoint
	for {
		fmt.Fprintf(w.out, "Collector endpoint [%s]: ", cfg.Endpoint)
		endpoint, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if endpoint == "" {
			break
		}
		if err := validator.ValidateEndpoint(endpoint); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Endpoint = endpoint
		break
	}

	// Offline queue
	fmt.Fprintf(w.out, "Keep undelivered events across restarts? (y/n) [%s]: ", yesNo(cfg.OfflineQueue))
	answer, err := w.readLine()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		cfg.OfflineQueue = true
	case "n", "no":
		cfg.OfflineQueue = false
	}

	// Retry attempts
	for {
		fmt.Fprintf(w.out, "Delivery attempts per event [%d]: ", cfg.RetryAttempts)
		answer, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if answer == "" {
			break
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 0 {
			fmt.Fprintln(w.out, "Error: enter a whole number of 0 or more")
			continue
		}
		cfg.RetryAttempts = n
		break
	}

	// Debug logs
	fmt.Fprintf(w.out, "Enable debug logs? (y/n) [%s]: ", yesNo(cfg.DebugLogs))
	answer, err = w.readLine()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		cfg.DebugLogs = true
	case "n", "no":
		cfg.DebugLogs = false
	}

	fmt.Fprintln(w.out)
	return &cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

package cli

import (
	"context"
	"time"

	"github.com/paondev/tapakasih/pkg/token"
	"github.com/paondev/tapakasih/pkg/transport"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the collector whether it wants events",
	Long: `Query the collector's activity check endpoint with the configured developer
token. A failed check is reported as ON_DEMAND, which is how the tracker
treats it.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	if err := token.Validate(cfg.DeveloperToken); err != nil {
		return err
	}

	if info, ok := token.Peek(cfg.DeveloperToken); ok {
		if info.Subject != "" {
			cmd.Printf("Token subject: %s\n", info.Subject)
		}
		if info.Expired(time.Now()) {
			cmd.Printf("Token expired at %s\n", info.ExpiresAt.Format(time.RFC3339))
		}
	}

	client := transport.NewClient(transport.Config{
		Endpoint: cfg.Endpoint,
		Token:    cfg.DeveloperToken,
		Timeout:  cfg.Delivery.RequestTimeout,
		Logger:   env.logger(),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Delivery.RequestTimeout)
	defer cancel()

	demand, err := client.CheckDemand(ctx)
	cmd.Printf("Endpoint: %s\n", cfg.Endpoint)
	cmd.Printf("Demand: %s\n", demand)
	if err != nil {
		cmd.Printf("Check failed: %v\n", err)
		return err
	}
	return nil
}

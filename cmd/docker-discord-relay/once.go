package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/auto-dns/docker-discord-relay/internal/app"
	"github.com/auto-dns/docker-discord-relay/internal/logger"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single relay cycle and exit",
	Long: "Relays the logs written during the last --lookback to Discord in a single cycle. " +
		"With a durable watermark backend the cycle resumes from the stored watermark instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		if err := cfg.Validate(true); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		lookback, _ := cmd.Flags().GetDuration("lookback")
		logInstance := logger.SetupLogger(&cfg.Logging)

		var application application
		application, err := app.New(cfg, logInstance)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		ctx, cancel := signalContext(logInstance)
		defer cancel()

		report, err := application.RunOnce(ctx, lookback)
		if err != nil {
			return err
		}
		if report.Aborted {
			return fmt.Errorf("cycle aborted: %w", report.Err)
		}

		names := make([]string, 0, len(report.Sent))
		for name := range report.Sent {
			names = append(names, name)
		}
		sort.Strings(names)
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(out, "%s: %d message(s)\n", name, report.Sent[name])
		}
		for _, err := range report.Errors {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		return nil
	},
}

func init() {
	onceCmd.Flags().Duration("lookback", 5*time.Minute, "how far back to relay logs")
}

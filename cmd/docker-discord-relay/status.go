package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/auto-dns/docker-discord-relay/internal/app"
	"github.com/auto-dns/docker-discord-relay/internal/core"
	"github.com/auto-dns/docker-discord-relay/internal/format"
	"github.com/auto-dns/docker-discord-relay/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every relayed container",
	Long:  "Lists the containers carrying the fleet label with their runtime status. Needs only Docker access.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		if err := cfg.Validate(false); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logInstance := logger.SetupLogger(&cfg.Logging)

		rt, err := app.NewDockerRuntime(cfg, logInstance)
		if err != nil {
			return err
		}
		defer rt.Close()
		directory, err := app.NewDirectory(cfg, rt, logInstance)
		if err != nil {
			return err
		}

		callTimeout := time.Duration(cfg.App.CallTimeout) * time.Second
		bridge := core.NewBridge(directory, rt, format.New(cfg.Format), "", callTimeout, logInstance)
		report, err := bridge.StatusReport(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report)
		return nil
	},
}

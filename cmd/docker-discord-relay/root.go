package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/auto-dns/docker-discord-relay/internal/app"
	"github.com/auto-dns/docker-discord-relay/internal/config"
	"github.com/auto-dns/docker-discord-relay/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var rootCmd = &cobra.Command{
	Use:   "docker-discord-relay",
	Short: "Relay Docker container logs to Discord channels",
	Long: "Relays the logs of labeled Docker containers into the Discord text channel named after each " +
		"container, and answers /status, /start, /stop and /restart slash commands.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.InitConfig(configFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		cmd.SetContext(ctx)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		if err := cfg.Validate(true); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Set up logger.
		logInstance := logger.SetupLogger(&cfg.Logging)

		// Create the application.
		var application application
		application, err := app.New(cfg, logInstance)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		ctx, cancel := signalContext(logInstance)
		defer cancel()

		// Run the application. When context is canceled, Run returns.
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	},
}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey).(*config.Config)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Msgf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	rootCmd.PersistentFlags().String("fleet-label", "", "docker label selecting the relayed containers (key=value)")
	viper.BindPFlag("log.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("app.fleet_label", rootCmd.PersistentFlags().Lookup("fleet-label"))

	rootCmd.AddCommand(statusCmd, onceCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}

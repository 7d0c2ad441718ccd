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

	"github.com/auto-dns/harbinger/internal/app"
	"github.com/auto-dns/harbinger/internal/config"
	"github.com/auto-dns/harbinger/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "harbinger",
	Short: "Relay Docker container lifecycle events to Slack",
	Long: "Watches the Docker event stream on this host and posts start, exit, kill, OOM and restart " +
		"notifications, with exit codes, compose identity and recent logs, to a Slack webhook.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(cfgFile); err != nil {
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
		// Load configuration.
		cfg := cmd.Context().Value(configKey).(*config.Config)

		// Set up logger.
		logInstance := logger.SetupLogger(&cfg.Logging)

		// Create the application.
		a, err := app.New(cfg, logInstance)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return run(a, logInstance)
	},
}

// run drives the application until SIGINT or SIGTERM, then closes it.
func run(svc application, logInstance zerolog.Logger) error {
	defer func() {
		if err := svc.Close(); err != nil {
			logInstance.Error().Err(err).Msg("Error closing application")
		}
	}()

	// Create a context with cancellation for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for OS signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logInstance.Info().Msgf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run the application. When context is canceled, Run returns.
	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	rootCmd.PersistentFlags().String("log-format", "console", "log output format (console or json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoicewatch/internal/api"
	"invoicewatch/internal/config"
	"invoicewatch/internal/logger"
)

var version = "1.0.0"

// cfg is loaded before every subcommand runs, after flags are parsed.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoicewatch",
	Short: "invoicewatch - live view of today's invoicing",
	Long: `invoicewatch keeps a live, reconciled view of today's invoices for one
branch of the invoicing server. It loads a snapshot over HTTP, applies
pushed invoices from the branch's websocket channel, and keeps the daily
summary and the cumulative sales history consistent as invoices arrive.

Settings come from the environment (or a .env file) and can be
overridden per run with the global flags:
  API_BASE_URL   Invoicing server root (default http://127.0.0.1:8000)
  WS_URL         Push channel URL (default derived from API_BASE_URL)
  BRANCH         Push channel branch code (default FLO)
  BRANCH_FILTER  Forecast and history branch filter (default all)
  TIMEZONE       Timezone calendar days are computed in (default Local)`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("api-url", "", "Invoicing server root URL (API_BASE_URL)")
	flags.String("ws-url", "", "Push channel URL (WS_URL)")
	flags.String("branch", "", "Push channel branch code (BRANCH)")
	flags.String("branch-filter", "", "Branch filter for forecast and history, or \"all\" (BRANCH_FILTER)")
	flags.String("timezone", "", "IANA timezone for calendar days (TIMEZONE)")
	flags.String("log-level", "", "Log level (LOG_LEVEL)")

	for key, flag := range map[string]string{
		"API_BASE_URL":  "api-url",
		"WS_URL":        "ws-url",
		"BRANCH":        "branch",
		"BRANCH_FILTER": "branch-filter",
		"TIMEZONE":      "timezone",
		"LOG_LEVEL":     "log-level",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// createContext creates a context cancelled on SIGINT/SIGTERM and, when
// timeout is positive, after timeout.
func createContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func newClient(log zerolog.Logger) (*api.Client, error) {
	client, err := api.NewClient(cfg.APIConfig())
	if err != nil {
		log.Error().Err(err).Str("api_url", cfg.APIBaseURL).Msg("Invalid invoicing server URL")
		return nil, err
	}
	return client, nil
}

// writeJSON writes v as indented JSON to outputPath, or stdout when empty.
func writeJSON(v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal output to JSON")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath == "" {
		if _, err := os.Stdout.Write(append(jsonData, '\n')); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(jsonData)).
		Msg("Output written to file")
	return nil
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%12.2f", v)
}

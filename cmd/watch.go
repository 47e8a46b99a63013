package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/logger"
	"invoicewatch/internal/server"
	"invoicewatch/internal/session"
	"invoicewatch/internal/stream"
	"invoicewatch/internal/supervisor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a live dashboard session",
	Long: `Start a dashboard session: load today's snapshot, connect to the branch's
push channel, and reconcile pushed invoices into the running summary and
history. The session refreshes itself at a random interval between
REFRESH_MIN and REFRESH_MAX and reconnects after RECONNECT_DELAY when the
push channel drops.

With --listen (or LISTEN_ADDR) the session is also served as a JSON API.`,
	Example: `  # Watch the default branch and print a status line every 10 seconds
  invoicewatch watch

  # Watch branch CED and serve the read API
  invoicewatch watch --branch CED --listen :8080

  # Snapshot-only session without the push channel
  invoicewatch watch --no-stream`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("listen", "", "Serve the read API on this address (default: LISTEN_ADDR)")
	watchCmd.Flags().Bool("no-stream", false, "Do not connect to the push channel")
	watchCmd.Flags().Duration("status-interval", 10*time.Second, "Console status line interval, 0 disables it")
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("watch")

	listen, _ := cmd.Flags().GetString("listen")
	noStream, _ := cmd.Flags().GetBool("no-stream")
	statusInterval, _ := cmd.Flags().GetDuration("status-interval")
	if listen == "" {
		listen = cfg.ListenAddr
	}

	ctx, cancel := createContext(0, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}

	var dial supervisor.DialFunc
	if !noStream {
		streamURL, err := cfg.StreamURL()
		if err != nil {
			return fmt.Errorf("failed to build push channel URL: %w", err)
		}
		dialer := stream.NewDialer(streamURL)
		dial = func(ctx context.Context) (supervisor.Conn, error) {
			conn, err := dialer.Dial(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
		log.Info().Str("url", streamURL).Msg("Push channel enabled")
	}

	sess := session.New(client, dial, cfg.SessionConfig())
	defer sess.Close()

	log.Info().
		Str("session_id", sess.ID()).
		Str("branch", cfg.Branch).
		Str("api_url", cfg.APIBaseURL).
		Msg("Starting dashboard session")

	if err := sess.Start(ctx); err != nil {
		// The session stays live and recovers on the next refresh.
		log.Warn().Err(err).Msg("Initial snapshot failed")
	}

	serverErr := make(chan error, 1)
	if listen != "" {
		srv := server.New(sess)
		go func() { serverErr <- srv.Run(ctx, listen) }()
	}

	var ticks <-chan time.Time
	if statusInterval > 0 {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		ticks = ticker.C
		printStatus(sess.View())
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Dashboard session stopping")
			return nil
		case err := <-serverErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("read API failed: %w", err)
			}
			return nil
		case <-ticks:
			printStatus(sess.View())
		}
	}
}

func printStatus(v session.View) {
	last := "never"
	if !v.LastRefresh.IsZero() {
		last = v.LastRefresh.Format(time.TimeOnly)
	}

	line := fmt.Sprintf("[%s] %-12s invoices=%-4d total=%s net=%s avg=%s refreshed=%s",
		time.Now().Format(time.TimeOnly),
		v.StatusText,
		v.Summary.TotalInvoices,
		formatMoney(v.Summary.TotalSales),
		formatMoney(v.Summary.TotalNetSales),
		formatMoney(v.Summary.AverageTicket),
		last,
	)
	if v.Partial {
		line += " (partial)"
	}
	if v.LastError != "" {
		line += " error=" + v.LastError
	}
	fmt.Println(line)
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/aggregate"
	"invoicewatch/internal/logger"
	"invoicewatch/internal/sheets"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the cumulative daily sales history",
	Long: `Fetch the server's per-day sales for the last HISTORY_DAYS days and print
them with running cumulative totals. With --sheet the buckets are appended
to GOOGLE_SHEET_WORKSHEET of GOOGLE_SHEET_URL.

Required environment variables for --sheet:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Target spreadsheet URL`,
	Example: `  invoicewatch history --days 30
  invoicewatch history --sheet`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("days", 0, "Days of history (default: HISTORY_DAYS)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.Flags().Bool("sheet", false, "Append the history to the configured Google Sheet")
	historyCmd.Flags().Duration("timeout", 60*time.Second, "Overall timeout")
}

func runHistory(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("history")

	days, _ := cmd.Flags().GetInt("days")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if days <= 0 {
		days = cfg.HistoryDays
	}

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}

	daily, err := client.DailySales(ctx, days, cfg.BranchFilter)
	if err != nil {
		return err
	}
	history := aggregate.Merge(nil, daily)

	if toSheet {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for --sheet")
		}
		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return err
		}
		if err := svc.ExportHistory(ctx, history, cfg.BranchFilter, cfg.GoogleSheetWorksheet); err != nil {
			return err
		}
	}

	if jsonOutput {
		return writeJSON(history, "", log)
	}

	fmt.Printf("%-12s %8s %14s %14s\n", "Date", "Invoices", "Total", "Cumulative")
	fmt.Println(strings.Repeat("-", 52))
	for _, b := range history {
		fmt.Printf("%-12s %8d %s   %s\n", b.Date, b.Invoices, formatMoney(b.Total), formatMoney(b.Cumulative))
	}
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/logger"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the server's sales forecast for today",
	Long: `Print today's sales forecast as computed by the invoicing server, scoped
to BRANCH_FILTER (or --branch-filter). "all" means no branch filter.`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().Bool("json", false, "Output as JSON")
	forecastCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
}

func runForecast(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("forecast")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}

	f, err := client.Forecast(ctx, cfg.BranchFilter)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(f, "", log)
	}

	fmt.Printf("Forecast for branch %s\n", f.Branch)
	fmt.Printf("  Current total:   %s (%d invoices)\n", formatMoney(f.Today.CurrentTotal), f.Today.InvoiceCount)
	fmt.Printf("  Current net:     %s\n", formatMoney(f.Today.CurrentNetTotal))
	fmt.Printf("  Expected total:  %s\n", formatMoney(f.Detail.Total))
	fmt.Printf("  Remaining:       %s\n", formatMoney(f.Detail.Remaining))
	if f.Detail.Method != "" {
		fmt.Printf("  Method:          %s (ratio %.3f, %d samples over %d days)\n",
			f.Detail.Method, f.Detail.Ratio, f.Detail.HistorySamples, f.Detail.HistoryDays)
	}
	if f.Detail.PreviousDate != "" {
		fmt.Printf("  Previous day:    %s %s (%d invoices)\n",
			f.Detail.PreviousDate, formatMoney(f.Detail.PreviousTotal), f.Detail.PreviousInvoiceCount)
	}
	return nil
}

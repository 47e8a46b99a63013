package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/aggregate"
	"invoicewatch/internal/invoice"
	"invoicewatch/internal/logger"
	"invoicewatch/internal/realtime"
	"invoicewatch/internal/sheets"
	"invoicewatch/internal/view"
	"invoicewatch/pkg/models"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Load and print today's invoice snapshot",
	Long: `Load today's invoices from the invoicing server, following pagination,
and print them newest first together with the day's summary.

Filters narrow the printed list; the summary always covers the whole
snapshot. With --sheet the (filtered) invoices are appended to
GOOGLE_SHEET_WORKSHEET of GOOGLE_SHEET_URL.`,
	Example: `  # Console table of the first 100 invoices
  invoicewatch snapshot

  # Invoices of branch CED above 50 as JSON
  invoicewatch snapshot --branch-only CED --min-total 50 --json

  # Append today's invoices to the configured Google Sheet
  invoicewatch snapshot --sheet`,
	RunE: runSnapshot,
}

// SnapshotOutput is the JSON shape of the snapshot command.
type SnapshotOutput struct {
	Summary  models.Summary    `json:"summary"`
	History  aggregate.History `json:"history"`
	Partial  bool              `json:"partial"`
	Page     view.Page         `json:"page"`
	LoadedAt time.Time         `json:"loaded_at"`
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	snapshotCmd.Flags().Bool("json", false, "Output as JSON")
	snapshotCmd.Flags().Bool("sheet", false, "Append the invoices to the configured Google Sheet")
	snapshotCmd.Flags().String("query", "", "Only invoices whose number contains this text")
	snapshotCmd.Flags().String("branch-only", "", "Only invoices of this branch")
	snapshotCmd.Flags().Float64("min-total", 0, "Minimum invoice total")
	snapshotCmd.Flags().Float64("max-total", 0, "Maximum invoice total")
	snapshotCmd.Flags().Int("page", 1, "Page of 100 invoices to print")
	snapshotCmd.Flags().Duration("timeout", 60*time.Second, "Overall timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("snapshot")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	page, _ := cmd.Flags().GetInt("page")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	filters := view.Filters{}
	filters.Query, _ = cmd.Flags().GetString("query")
	filters.Branch, _ = cmd.Flags().GetString("branch-only")
	if cmd.Flags().Changed("min-total") {
		v, _ := cmd.Flags().GetFloat64("min-total")
		filters.MinTotal = &v
	}
	if cmd.Flags().Changed("max-total") {
		v, _ := cmd.Flags().GetFloat64("max-total")
		filters.MaxTotal = &v
	}

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}

	n := invoice.NewNormalizer(cfg.Location())
	snap, err := realtime.NewLoader(client, n).Load(ctx)
	if err != nil {
		return err
	}

	state := realtime.NewState(n)
	state.Seed(snap)

	filtered := view.Filter(snap.Invoices, filters)
	log.Info().
		Int("invoices", len(snap.Invoices)).
		Int("matching", len(filtered)).
		Bool("partial", snap.Partial).
		Msg("Snapshot loaded")

	if toSheet {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for --sheet")
		}
		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return err
		}
		if err := svc.ExportInvoices(ctx, filtered, cfg.GoogleSheetWorksheet); err != nil {
			return err
		}
	}

	p := view.Paginate(filtered, page)
	if jsonOutput || outputPath != "" {
		return writeJSON(SnapshotOutput{
			Summary:  snap.Summary,
			History:  state.History(),
			Partial:  snap.Partial,
			Page:     p,
			LoadedAt: time.Now(),
		}, outputPath, log)
	}

	printSnapshot(snap, p, filters)
	return nil
}

func printSnapshot(snap realtime.Snapshot, p view.Page, filters view.Filters) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("TODAY'S INVOICES")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Invoices:      %d\n", snap.Summary.TotalInvoices)
	fmt.Printf("Total sales:   %s\n", formatMoney(snap.Summary.TotalSales))
	fmt.Printf("Net sales:     %s\n", formatMoney(snap.Summary.TotalNetSales))
	fmt.Printf("Average:       %s\n", formatMoney(snap.Summary.AverageTicket))
	if snap.Partial {
		fmt.Println("Warning: the server stopped paging early, the list is incomplete.")
	}
	if n := filters.Active(); n > 0 {
		fmt.Printf("Filters:       %d active, %d matching\n", n, p.Total)
	}
	fmt.Println()

	if p.Total == 0 {
		fmt.Println("No invoices.")
		return
	}

	fmt.Printf("%-16s %-8s %-20s %5s %12s %12s\n", "Invoice", "Branch", "Time", "Items", "Subtotal", "Total")
	fmt.Println(strings.Repeat("-", 80))
	for _, inv := range p.Invoices {
		fmt.Printf("%-16s %-8s %-20s %5d %s %s\n",
			inv.InvoiceNumber, inv.Branch, displayTime(inv.Timestamp), inv.Items,
			formatMoney(inv.Subtotal), formatMoney(inv.Total))
	}
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Showing %d-%d of %d (page %d/%d)\n", p.RangeStart, p.RangeEnd, p.Total, p.Page, p.TotalPages)
}

func displayTime(ts string) string {
	t, err := time.Parse(invoice.CanonicalLayout, ts)
	if err != nil {
		return "-"
	}
	return t.Format(time.DateTime)
}

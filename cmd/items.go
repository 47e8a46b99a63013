package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/invoice"
	"invoicewatch/internal/logger"
	"invoicewatch/pkg/models"
)

var itemsCmd = &cobra.Command{
	Use:   "items [invoice-number]",
	Short: "Print the line items of one invoice",
	Example: `  invoicewatch items FV-1042
  invoicewatch items FV-1042 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runItems,
}

// ItemsOutput is the JSON shape of the items command.
type ItemsOutput struct {
	InvoiceNumber string               `json:"invoice_number"`
	Items         []models.LineItem    `json:"items"`
	Detail        models.InvoiceDetail `json:"detail"`
}

func init() {
	rootCmd.AddCommand(itemsCmd)

	itemsCmd.Flags().Bool("json", false, "Output as JSON")
	itemsCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
}

func runItems(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("items")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	number := strings.TrimSpace(args[0])

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}

	items, err := client.Items(ctx, number)
	if err != nil {
		return err
	}

	out := ItemsOutput{
		InvoiceNumber: number,
		Items:         items,
		Detail:        invoice.Detail(nil, items),
	}
	if jsonOutput {
		return writeJSON(out, "", log)
	}

	fmt.Printf("Invoice %s: %d item(s)\n", number, out.Detail.ItemCount)
	fmt.Println(strings.Repeat("-", 80))
	for _, item := range items {
		line := "-"
		if item.LineNumber != nil {
			line = fmt.Sprint(*item.LineNumber)
		}
		fmt.Printf("%4s  %-40s %8.2f x %s = %s\n",
			line, item.Description, item.Quantity, formatMoney(item.UnitPrice), formatMoney(item.Subtotal))
	}
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Subtotal: %s\n", formatMoney(out.Detail.Subtotal))
	return nil
}

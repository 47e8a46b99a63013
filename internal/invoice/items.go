package invoice

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"invoicewatch/pkg/models"
)

// SortItems returns line items ordered by line number; items without one
// follow, ordered by description.
func SortItems(items []models.LineItem) []models.LineItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b models.LineItem) int {
		switch {
		case a.LineNumber != nil && b.LineNumber != nil:
			if c := cmp.Compare(*a.LineNumber, *b.LineNumber); c != 0 {
				return c
			}
		case a.LineNumber != nil:
			return -1
		case b.LineNumber != nil:
			return 1
		}
		return strings.Compare(a.Description, b.Description)
	})
	return sorted
}

// Detail summarizes a selected invoice. Fetched items take precedence over the
// counts carried by the invoice; inv may be nil when the invoice is no longer
// in view.
func Detail(inv *models.Invoice, items []models.LineItem) models.InvoiceDetail {
	var d models.InvoiceDetail

	if len(items) > 0 {
		d.ItemCount = len(items)
		sum := decimal.Zero
		for _, item := range items {
			sum = sum.Add(decimal.NewFromFloat(item.Subtotal))
		}
		d.Subtotal = sum.InexactFloat64()
	} else if inv != nil {
		d.ItemCount = inv.Items
		d.Subtotal = inv.Subtotal
	}

	d.Total = d.Subtotal
	if inv != nil {
		d.Total = inv.Total
	}
	return d
}

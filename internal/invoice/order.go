package invoice

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"invoicewatch/pkg/models"
)

// Collators keep internal buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.Numeric, collate.IgnoreCase, collate.IgnoreDiacritics)
	},
}

// CompareNumbers compares invoice numbers with numeric-aware, case-insensitive collation.
func CompareNumbers(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// CompareDesc orders invoices newest first. Invoices without a timestamp sort
// last; equal instants fall back to invoice number, descending.
func CompareDesc(a, b models.Invoice) int {
	ta, okA := instant(a.Timestamp)
	tb, okB := instant(b.Timestamp)

	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && ta != tb:
		return cmp.Compare(tb, ta)
	}
	return CompareNumbers(b.InvoiceNumber, a.InvoiceNumber)
}

// SortDesc returns a new slice sorted by CompareDesc. The sort is stable.
func SortDesc(invoices []models.Invoice) []models.Invoice {
	sorted := slices.Clone(invoices)
	slices.SortStableFunc(sorted, CompareDesc)
	return sorted
}

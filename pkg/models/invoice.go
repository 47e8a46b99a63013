package models

// DefaultBranch is used when an invoice carries no branch code.
const DefaultBranch = "FLO"

// RawInvoice is an invoice-like record exactly as received from the bulk
// snapshot or a push frame. Field names and value shapes vary by source.
type RawInvoice map[string]any

type Invoice struct {
	// Identity
	Identifier    string `json:"identifier,omitempty"` // Deduplication key ("" when unidentifiable)
	InvoiceNumber string `json:"invoice_number"`       // Display key, not unique across days

	// Canonical instant (RFC 3339 with millis); "" when no candidate field parsed
	Timestamp string `json:"timestamp,omitempty"`

	// Amounts
	Total    float64 `json:"total"`
	Subtotal float64 `json:"subtotal"` // Net total, defaults to Total

	Items  int    `json:"items"`  // Line item count as reported by the source
	Branch string `json:"branch"` // Branch code, defaults to DefaultBranch

	// Raw keeps every source field so corrections can be merged field by field.
	Raw RawInvoice `json:"-"`
}

// HasTimestamp reports whether the invoice carries a canonical timestamp.
func (i Invoice) HasTimestamp() bool {
	return i.Timestamp != ""
}

// LineItem is one line of an invoice, fetched lazily per selected invoice.
type LineItem struct {
	LineNumber  *int    `json:"line_number,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// InvoiceDetail is the header of a selected invoice's detail panel.
type InvoiceDetail struct {
	ItemCount int     `json:"item_count"` // Fetched line count, else the invoice's own count
	Subtotal  float64 `json:"subtotal"`   // Sum of line subtotals, else the invoice subtotal
	Total     float64 `json:"total"`
}

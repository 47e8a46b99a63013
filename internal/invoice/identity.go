package invoice

import "invoicewatch/pkg/models"

// idFields are the explicit identifier fields in priority order.
var idFields = []string{"invoice_id", "invoice_number", "id", "uuid"}

// Identify returns the deduplication key of a normalized invoice: an explicit
// id field, else invoice number plus timestamp, else the timestamp alone.
// It returns "" when the invoice cannot be identified.
func Identify(inv models.Invoice) string {
	for _, field := range idFields {
		value, ok := inv.Raw[field]
		if !ok || value == nil {
			continue
		}
		if id := Stringify(value); id != "" {
			return id
		}
	}

	if inv.InvoiceNumber != "" && inv.HasTimestamp() {
		return inv.InvoiceNumber + "-" + inv.Timestamp
	}
	return inv.Timestamp
}

// SameInvoice matches two invoices by identifier, or by invoice number and
// canonical timestamp when candidate has no identifier.
func SameInvoice(existing, candidate models.Invoice) bool {
	if candidate.Identifier != "" {
		return Identify(existing) == candidate.Identifier
	}
	return existing.InvoiceNumber == candidate.InvoiceNumber &&
		existing.Timestamp == candidate.Timestamp
}

// IndexOf builds the identifier set of a list, skipping unidentifiable invoices.
func IndexOf(invoices []models.Invoice) map[string]struct{} {
	index := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if inv.Identifier != "" {
			index[inv.Identifier] = struct{}{}
		}
	}
	return index
}

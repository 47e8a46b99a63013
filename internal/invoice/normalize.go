// Package invoice turns heterogeneous raw invoice records into the canonical
// models.Invoice shape and defines identity and ordering over invoices.
//
// Raw records come from two sources with different field names: the bulk
// "today" snapshot and push frames. Normalization never panics; records
// without a parseable timestamp are kept but sort last and are excluded from
// day-based logic.
package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"strings"
	"time"

	"invoicewatch/pkg/models"
)

// timestampFields lists the candidate timestamp fields in priority order.
var timestampFields = []string{"invoice_date", "timestamp", "created_at"}

// Normalizer converts raw records into canonical invoices. Local-style
// timestamps are read, and canonical timestamps rendered, in Location.
type Normalizer struct {
	Location *time.Location
}

// NewNormalizer creates a Normalizer for loc (time.Local when nil).
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Location: loc}
}

// Decode parses one push frame into a raw record. The frame must hold
// exactly one JSON value.
func Decode(data []byte) (models.RawInvoice, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, NewNormalizeError("Decode", ErrMalformedPayload, err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, NewNormalizeError("Decode", ErrMalformedPayload, "trailing data after JSON value")
	}

	raw, ok := AsRaw(value)
	if !ok {
		return nil, NewNormalizeError("Decode", ErrNotInvoice, "")
	}
	return raw, nil
}

// AsRaw accepts any decoded JSON value that is an object.
func AsRaw(value any) (models.RawInvoice, bool) {
	switch v := value.(type) {
	case models.RawInvoice:
		return v, v != nil
	case map[string]any:
		return models.RawInvoice(v), v != nil
	default:
		return nil, false
	}
}

// Normalize builds the canonical invoice for raw.
func (n *Normalizer) Normalize(raw models.RawInvoice) (models.Invoice, error) {
	if raw == nil {
		return models.Invoice{}, NewNormalizeError("Normalize", ErrNotInvoice, "nil record")
	}

	bag := maps.Clone(raw)

	inv := models.Invoice{
		InvoiceNumber: Stringify(raw["invoice_number"]),
		Total:         ToNumber(raw["total"]),
		Items:         ToInt(raw["items"]),
		Branch:        strings.TrimSpace(Stringify(raw["branch"])),
	}

	if sub, ok := raw["subtotal"]; ok && sub != nil {
		inv.Subtotal = ToNumber(sub)
	} else {
		inv.Subtotal = inv.Total
	}

	if inv.Branch == "" {
		inv.Branch = models.DefaultBranch
	}

	if ts, ok := n.CanonicalTimestamp(raw); ok {
		inv.Timestamp = ts
		bag["timestamp"] = ts
	}

	inv.Raw = bag
	inv.Identifier = Identify(inv)
	return inv, nil
}

// Merge applies a correction on top of an existing invoice: fields present in
// update win, everything else is kept from current.
func (n *Normalizer) Merge(current, update models.Invoice) (models.Invoice, error) {
	merged := make(models.RawInvoice, len(current.Raw)+len(update.Raw))
	maps.Copy(merged, current.Raw)
	maps.Copy(merged, update.Raw)
	return n.Normalize(merged)
}

// CanonicalTimestamp returns the first candidate field that parses.
func (n *Normalizer) CanonicalTimestamp(raw models.RawInvoice) (string, bool) {
	for _, field := range timestampFields {
		if t, ok := ParseTimestamp(raw[field], n.Location); ok {
			return FormatTimestamp(t, n.Location), true
		}
	}
	return "", false
}

// DayOfValue returns the YYYY-MM-DD day of a raw timestamp value, or "".
func (n *Normalizer) DayOfValue(value any) string {
	if s, ok := value.(string); ok && datePrefixPattern.MatchString(s) {
		if _, err := time.Parse(CanonicalLayout, s); err == nil {
			return s[:10]
		}
	}
	t, ok := ParseTimestamp(value, n.Location)
	if !ok {
		return ""
	}
	return t.In(n.Location).Format(time.DateOnly)
}

// DayOf returns the calendar day of a canonical invoice, or "" when it has no timestamp.
func (n *Normalizer) DayOf(inv models.Invoice) string {
	if !inv.HasTimestamp() {
		return ""
	}
	if datePrefixPattern.MatchString(inv.Timestamp) {
		return inv.Timestamp[:10]
	}
	return n.DayOfValue(inv.Timestamp)
}

// Today returns the current day in the normalizer's location.
func (n *Normalizer) Today(now time.Time) string {
	return now.In(n.Location).Format(time.DateOnly)
}

// Package view holds the read-side helpers consumers apply to a session
// view: filtering, pagination, branch and range discovery, and the
// per-minute billing series. Nothing here mutates its input.
package view

import (
	"math"
	"slices"
	"strings"

	"invoicewatch/internal/api"
	"invoicewatch/internal/invoice"
	"invoicewatch/pkg/models"
)

// PageSize is the number of invoices per page.
const PageSize = 100

// Filters narrows the invoice list. Nil bounds are unset.
type Filters struct {
	Query    string   `json:"query"`
	Branch   string   `json:"branch"`
	MinTotal *float64 `json:"min_total,omitempty"`
	MaxTotal *float64 `json:"max_total,omitempty"`
	MinItems *float64 `json:"min_items,omitempty"`
	MaxItems *float64 `json:"max_items,omitempty"`
}

func (f Filters) branch() string {
	if b := strings.TrimSpace(f.Branch); b != "" {
		return b
	}
	return api.AllBranches
}

// Active counts active filter groups: query, branch, total range and items range.
func (f Filters) Active() int {
	count := 0
	if strings.TrimSpace(f.Query) != "" {
		count++
	}
	if f.branch() != api.AllBranches {
		count++
	}
	if f.MinTotal != nil || f.MaxTotal != nil {
		count++
	}
	if f.MinItems != nil || f.MaxItems != nil {
		count++
	}
	return count
}

// Match reports whether inv passes every filter.
func (f Filters) Match(inv models.Invoice) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" &&
		!strings.Contains(strings.ToLower(inv.InvoiceNumber), q) {
		return false
	}

	if b := f.branch(); b != api.AllBranches && branchOf(inv) != b {
		return false
	}

	total, items := inv.Total, float64(inv.Items)
	switch {
	case f.MinTotal != nil && total < *f.MinTotal:
		return false
	case f.MaxTotal != nil && total > *f.MaxTotal:
		return false
	case f.MinItems != nil && items < *f.MinItems:
		return false
	case f.MaxItems != nil && items > *f.MaxItems:
		return false
	}
	return true
}

// Filter returns the invoices matching f, keeping their order.
func Filter(invoices []models.Invoice, f Filters) []models.Invoice {
	if f.Active() == 0 {
		return invoices
	}
	out := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	return out
}

// Page is one page of a filtered list.
type Page struct {
	Invoices   []models.Invoice `json:"invoices"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Total      int              `json:"total"`
	RangeStart int              `json:"range_start"` // 1-based, 0 when empty
	RangeEnd   int              `json:"range_end"`
}

// Paginate returns the requested page, clamping it into [1, TotalPages].
// There is always at least one page.
func Paginate(invoices []models.Invoice, page int) Page {
	total := len(invoices)
	totalPages := max(1, (total+PageSize-1)/PageSize)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*PageSize, total)
	end := min(start+PageSize, total)

	p := Page{
		Invoices:   invoices[start:end:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}
	if total > 0 {
		p.RangeStart = start + 1
		p.RangeEnd = end
	}
	return p
}

// Branches lists the distinct branch codes, sorted.
func Branches(invoices []models.Invoice) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, inv := range invoices {
		b := branchOf(inv)
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	slices.SortFunc(out, invoice.CompareNumbers)
	return out
}

// Range is a closed numeric interval. Both ends are 0 for an empty list.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TotalsRange returns the smallest and largest invoice total.
func TotalsRange(invoices []models.Invoice) Range {
	return rangeOf(invoices, func(inv models.Invoice) float64 { return inv.Total })
}

// ItemsRange returns the smallest and largest line item count.
func ItemsRange(invoices []models.Invoice) Range {
	return rangeOf(invoices, func(inv models.Invoice) float64 { return float64(inv.Items) })
}

func rangeOf(invoices []models.Invoice, value func(models.Invoice) float64) Range {
	if len(invoices) == 0 {
		return Range{}
	}
	r := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, inv := range invoices {
		v := value(inv)
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	return r
}

func branchOf(inv models.Invoice) string {
	if inv.Branch == "" {
		return models.DefaultBranch
	}
	return inv.Branch
}

package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicewatch/pkg/models"
)

func ptr(v float64) *float64 { return &v }

func sample() []models.Invoice {
	return []models.Invoice{
		{InvoiceNumber: "FV-300", Total: 300, Items: 5, Branch: "CED", Timestamp: "2024-05-01T10:02:30.000-05:00"},
		{InvoiceNumber: "FV-200", Total: 200, Items: 1, Branch: "FLO", Timestamp: "2024-05-01T10:01:10.000-05:00"},
		{InvoiceNumber: "fv-120", Total: 50, Items: 3, Branch: "", Timestamp: "2024-05-01T10:01:05.000-05:00"},
		{InvoiceNumber: "NC-7", Total: 10, Items: 0, Branch: "SAN"},
	}
}

func numbers(invoices []models.Invoice) []string {
	out := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, inv.InvoiceNumber)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"none", Filters{}, []string{"FV-300", "FV-200", "fv-120", "NC-7"}},
		{"query is case insensitive", Filters{Query: " FV-"}, []string{"FV-300", "FV-200", "fv-120"}},
		{"default branch", Filters{Branch: "FLO"}, []string{"FV-200", "fv-120"}},
		{"all branches", Filters{Branch: "all"}, []string{"FV-300", "FV-200", "fv-120", "NC-7"}},
		{"total range", Filters{MinTotal: ptr(50), MaxTotal: ptr(200)}, []string{"FV-200", "fv-120"}},
		{"items range", Filters{MinItems: ptr(1), MaxItems: ptr(3)}, []string{"FV-200", "fv-120"}},
		{"combined", Filters{Query: "fv", Branch: "CED", MinItems: ptr(5)}, []string{"FV-300"}},
		{"no match", Filters{Query: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, numbers(Filter(sample(), tt.filters)))
		})
	}
}

func TestActiveFilters(t *testing.T) {
	assert.Zero(t, Filters{}.Active())
	assert.Zero(t, Filters{Query: "  ", Branch: "all"}.Active())
	assert.Equal(t, 1, Filters{MinTotal: ptr(1), MaxTotal: ptr(2)}.Active())
	assert.Equal(t, 4, Filters{Query: "a", Branch: "CED", MaxTotal: ptr(2), MinItems: ptr(0)}.Active())
}

func TestPaginate(t *testing.T) {
	invoices := make([]models.Invoice, 250)
	for i := range invoices {
		invoices[i].InvoiceNumber = fmt.Sprintf("FV-%d", i)
	}

	p := Paginate(invoices, 2)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 250, p.Total)
	assert.Equal(t, 101, p.RangeStart)
	assert.Equal(t, 200, p.RangeEnd)
	assert.Len(t, p.Invoices, 100)
	assert.Equal(t, "FV-100", p.Invoices[0].InvoiceNumber)

	last := Paginate(invoices, 99)
	assert.Equal(t, 3, last.Page)
	assert.Len(t, last.Invoices, 50)
	assert.Equal(t, 201, last.RangeStart)
	assert.Equal(t, 250, last.RangeEnd)

	first := Paginate(invoices, -4)
	assert.Equal(t, 1, first.Page)

	empty := Paginate(nil, 3)
	assert.Equal(t, Page{Page: 1, TotalPages: 1}, Page{Page: empty.Page, TotalPages: empty.TotalPages, Total: empty.Total, RangeStart: empty.RangeStart, RangeEnd: empty.RangeEnd})
	assert.Empty(t, empty.Invoices)
}

func TestBranchesAndRanges(t *testing.T) {
	invoices := sample()
	assert.Equal(t, []string{"CED", "FLO", "SAN"}, Branches(invoices))
	assert.Equal(t, Range{Min: 10, Max: 300}, TotalsRange(invoices))
	assert.Equal(t, Range{Min: 0, Max: 5}, ItemsRange(invoices))
	assert.Equal(t, Range{}, TotalsRange(nil))
	assert.Empty(t, Branches(nil))
}

func TestBillingSeries(t *testing.T) {
	series := BillingSeries(sample(), time.Minute)

	require.Len(t, series.Points, 2)
	first, second := series.Points[0], series.Points[1]

	assert.Equal(t, "10:01", first.Start.Format("15:04"))
	assert.Equal(t, "10:02", first.End.Format("15:04"))
	assert.Equal(t, 250.0, first.Total)
	require.Len(t, first.Invoices, 2)
	assert.Equal(t, "fv-120", first.Invoices[0].InvoiceNumber)
	assert.Equal(t, models.DefaultBranch, first.Invoices[0].Branch)

	assert.Equal(t, 300.0, second.Total)
	assert.Equal(t, 275.0, series.Average)
	assert.Equal(t, -25.0, first.Deviation)
	assert.Equal(t, 25.0, second.Deviation)

	// Mean invoice total is (300+200+50)/3.
	assert.InDelta(t, 300-550.0/3, second.Invoices[0].Deviation, 1e-9)

	assert.Equal(t, Series{}, BillingSeries(nil, 0))
}

package view

import (
	"slices"
	"time"

	"invoicewatch/internal/invoice"
	"invoicewatch/pkg/models"
)

// DefaultBucket is the width of one billing series point.
const DefaultBucket = time.Minute

// SeriesInvoice is one invoice placed in the billing series.
type SeriesInvoice struct {
	InvoiceNumber string    `json:"invoice_number"`
	Timestamp     time.Time `json:"timestamp"`
	Total         float64   `json:"total"`
	Branch        string    `json:"branch"`
	Deviation     float64   `json:"deviation"` // Total minus the mean invoice total
}

// SeriesPoint is one time bucket of the billing series.
type SeriesPoint struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Total     float64         `json:"total"`
	Average   float64         `json:"average"`   // Mean bucket total across the series
	Deviation float64         `json:"deviation"` // Total minus Average
	Invoices  []SeriesInvoice `json:"invoices"`
}

// Series is the billing activity of the day, oldest bucket first.
type Series struct {
	Points  []SeriesPoint `json:"points"`
	Average float64       `json:"average"`
}

// BillingSeries groups invoices into fixed-width time buckets. Invoices
// without a timestamp are left out.
func BillingSeries(invoices []models.Invoice, width time.Duration) Series {
	if width <= 0 {
		width = DefaultBucket
	}

	entries := make([]SeriesInvoice, 0, len(invoices))
	var sum float64
	for _, inv := range invoices {
		if !inv.HasTimestamp() {
			continue
		}
		ts, err := time.Parse(invoice.CanonicalLayout, inv.Timestamp)
		if err != nil {
			continue
		}
		entries = append(entries, SeriesInvoice{
			InvoiceNumber: inv.InvoiceNumber,
			Timestamp:     ts,
			Total:         inv.Total,
			Branch:        branchOf(inv),
		})
		sum += inv.Total
	}
	if len(entries) == 0 {
		return Series{}
	}

	slices.SortStableFunc(entries, func(a, b SeriesInvoice) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	invoiceAverage := sum / float64(len(entries))

	var points []SeriesPoint
	for _, e := range entries {
		e.Deviation = e.Total - invoiceAverage
		start := e.Timestamp.Truncate(width)

		if n := len(points); n > 0 && points[n-1].Start.Equal(start) {
			points[n-1].Total += e.Total
			points[n-1].Invoices = append(points[n-1].Invoices, e)
			continue
		}
		points = append(points, SeriesPoint{
			Start:    start,
			End:      start.Add(width),
			Total:    e.Total,
			Invoices: []SeriesInvoice{e},
		})
	}

	var bucketSum float64
	for _, p := range points {
		bucketSum += p.Total
	}
	average := bucketSum / float64(len(points))
	for i := range points {
		points[i].Average = average
		points[i].Deviation = points[i].Total - average
	}

	return Series{Points: points, Average: average}
}

// Package aggregate maintains the running daily summary and the cumulative
// per-day sales history. Updates cost O(days); only snapshot seeding scans
// invoices.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"invoicewatch/pkg/models"
)

// History is the per-day bucket sequence, ordered by date ascending, with at
// most one bucket per date.
type History []models.Bucket

// Delta describes one accepted push event.
type Delta struct {
	Total      float64
	Net        float64
	NewInvoice bool   // false for corrections of an already counted invoice
	Rollover   bool   // first invoice of a later calendar day
	Day        string // YYYY-MM-DD the invoice belongs to
}

// Apply returns the next summary and history for d. Inputs are not modified.
func Apply(summary models.Summary, history History, d Delta) (models.Summary, History) {
	switch {
	case d.Rollover:
		summary = models.Summary{
			TotalSales:    d.Total,
			TotalNetSales: d.Net,
			TotalInvoices: 1,
			AverageTicket: d.Total,
		}
	case d.NewInvoice:
		summary.TotalSales = add(summary.TotalSales, d.Total)
		summary.TotalNetSales = add(summary.TotalNetSales, d.Net)
		summary.TotalInvoices++
		summary.AverageTicket = Average(summary.TotalSales, summary.TotalInvoices)
	default:
		return summary, history
	}

	if d.Day != "" {
		history = history.Upsert(d.Day, d.Total)
	}
	return summary, history
}

// Average is total/count, or 0 when count is 0.
func Average(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Upsert adds one invoice worth total to the bucket for day, creating it in
// date order when missing, and shifts the cumulative of every later bucket.
func (h History) Upsert(day string, total float64) History {
	idx, found := slices.BinarySearchFunc(h, day, func(b models.Bucket, d string) int {
		return cmp.Compare(b.Date, d)
	})

	next := make(History, 0, len(h)+1)
	next = append(next, h...)

	if found {
		next[idx].Total = add(next[idx].Total, total)
		next[idx].Invoices++
	} else {
		previous := 0.0
		if idx > 0 {
			previous = next[idx-1].Cumulative
		}
		next = slices.Insert(next, idx, models.Bucket{
			Date:       day,
			Total:      total,
			Cumulative: previous,
			Invoices:   1,
		})
	}

	for j := idx; j < len(next); j++ {
		next[j].Cumulative = add(next[j].Cumulative, total)
	}
	return next
}

// Last returns the most recent bucket.
func (h History) Last() (models.Bucket, bool) {
	if len(h) == 0 {
		return models.Bucket{}, false
	}
	return h[len(h)-1], true
}

// Validate checks ordering, uniqueness and the running-sum invariant.
func (h History) Validate() error {
	running := decimal.Zero
	for i, b := range h {
		if i > 0 && b.Date <= h[i-1].Date {
			return fmt.Errorf("bucket %d (%s) is not after %s", i, b.Date, h[i-1].Date)
		}
		running = running.Add(decimal.NewFromFloat(b.Total))
		if !running.Equal(decimal.NewFromFloat(b.Cumulative)) {
			return fmt.Errorf("bucket %s cumulative %v, want %v", b.Date, b.Cumulative, running)
		}
	}
	return nil
}

// Summarize computes the summary of a full invoice list. Used at snapshot time only.
func Summarize(invoices []models.Invoice) models.Summary {
	total, net := decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		total = total.Add(decimal.NewFromFloat(inv.Total))
		net = net.Add(decimal.NewFromFloat(inv.Subtotal))
	}
	s := models.Summary{
		TotalSales:    total.InexactFloat64(),
		TotalNetSales: net.InexactFloat64(),
		TotalInvoices: len(invoices),
	}
	s.AverageTicket = Average(s.TotalSales, s.TotalInvoices)
	return s
}

// Seed builds the history of a full invoice list, grouping by dayOf.
// Invoices without a day are skipped.
func Seed(invoices []models.Invoice, dayOf func(models.Invoice) string) History {
	buckets := make(map[string]*models.Bucket)
	for _, inv := range invoices {
		day := dayOf(inv)
		if day == "" {
			continue
		}
		b, ok := buckets[day]
		if !ok {
			b = &models.Bucket{Date: day}
			buckets[day] = b
		}
		b.Total = add(b.Total, inv.Total)
		b.Invoices++
	}

	entries := make([]models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		entries = append(entries, *b)
	}
	return Rebuild(entries)
}

// Merge combines server-side daily history with live buckets. Days present in
// live keep their live totals; other days take the server totals.
func Merge(live History, server []models.DailySales) History {
	byDay := make(map[string]models.Bucket, len(live)+len(server))
	for _, entry := range server {
		if entry.Date == "" {
			continue
		}
		byDay[entry.Date] = models.Bucket{Date: entry.Date, Total: entry.Total, Invoices: entry.Invoices}
	}
	for _, b := range live {
		byDay[b.Date] = b
	}

	entries := make([]models.Bucket, 0, len(byDay))
	for _, b := range byDay {
		entries = append(entries, b)
	}
	return Rebuild(entries)
}

// Rebuild orders entries by date, folds duplicate dates and recomputes cumulative totals.
func Rebuild(entries []models.Bucket) History {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b models.Bucket) int {
		return cmp.Compare(a.Date, b.Date)
	})

	out := make(History, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date == b.Date {
			out[n-1].Total = add(out[n-1].Total, b.Total)
			out[n-1].Invoices += b.Invoices
			continue
		}
		out = append(out, models.Bucket{Date: b.Date, Total: b.Total, Invoices: b.Invoices})
	}

	running := decimal.Zero
	for i := range out {
		running = running.Add(decimal.NewFromFloat(out[i].Total))
		out[i].Cumulative = running.InexactFloat64()
	}
	return out
}

func add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

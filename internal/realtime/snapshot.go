package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"invoicewatch/internal/aggregate"
	"invoicewatch/internal/api"
	"invoicewatch/internal/invoice"
	"invoicewatch/internal/logger"
	"invoicewatch/pkg/models"
)

// DefaultPageSize is the page size requested when the server does not report one.
const DefaultPageSize = 500

// ErrSnapshotFailed is returned when the first snapshot request fails.
var ErrSnapshotFailed = errors.New("snapshot load failed")

// TodaySource serves pages of today's invoices. *api.Client implements it.
type TodaySource interface {
	Today(ctx context.Context, page *api.Page) (*api.TodayPage, error)
}

// Snapshot is a point-in-time bulk load of today's invoices.
type Snapshot struct {
	Invoices []models.Invoice
	Summary  models.Summary

	// Partial is set when paging stopped before total_invoices were received.
	Partial bool
}

// Loader fetches and normalizes snapshots.
type Loader struct {
	source     TodaySource
	normalizer *invoice.Normalizer
	pageSize   int
	log        zerolog.Logger
}

// NewLoader creates a Loader reading from source.
func NewLoader(source TodaySource, n *invoice.Normalizer) *Loader {
	if n == nil {
		n = invoice.NewNormalizer(nil)
	}
	return &Loader{
		source:     source,
		normalizer: n,
		pageSize:   DefaultPageSize,
		log:        logger.WithComponent("snapshot"),
	}
}

// Load fetches today's invoices, following envelope pagination until every
// invoice is received, a page fails or comes back empty, or a page is short.
// Only a failure of the first request is an error.
func (l *Loader) Load(ctx context.Context) (Snapshot, error) {
	const op = "Load"

	first, err := l.source.Today(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w: %w", op, ErrSnapshotFailed, err)
	}

	raws := first.Invoices
	partial := false

	if first.Envelope && first.TotalInvoices != nil {
		total := *first.TotalInvoices
		limit := l.pageSize
		if first.Limit != nil && *first.Limit > 0 {
			limit = *first.Limit
		}
		start := 0
		if first.Offset != nil && *first.Offset > 0 {
			start = *first.Offset
		}

		more := len(first.Invoices) > 0 && !(first.Limit != nil && len(first.Invoices) < limit)
		for more && len(raws) < total {
			page, err := l.source.Today(ctx, &api.Page{Offset: start + len(raws), Limit: limit})
			if err != nil {
				l.log.Warn().Err(err).
					Int("received", len(raws)).
					Int("total_invoices", total).
					Msg("Snapshot page failed, keeping partial result")
				break
			}
			if len(page.Invoices) == 0 {
				break
			}

			raws = append(raws, page.Invoices...)
			if page.Limit != nil && *page.Limit > 0 {
				limit = *page.Limit
			}
			more = len(page.Invoices) >= limit
		}

		if len(raws) < total {
			partial = true
			l.log.Warn().
				Int("received", len(raws)).
				Int("total_invoices", total).
				Msg("Snapshot incomplete")
		}
	}

	invoices := make([]models.Invoice, 0, len(raws))
	for _, raw := range raws {
		inv, err := l.normalizer.Normalize(raw)
		if err != nil {
			l.log.Debug().Err(err).Msg("Skipping snapshot record")
			continue
		}
		invoices = append(invoices, inv)
	}
	invoices = invoice.SortDesc(invoices)

	snap := Snapshot{
		Invoices: invoices,
		Summary:  summarize(first, invoices),
		Partial:  partial,
	}

	l.log.Info().
		Int("invoices", len(invoices)).
		Int("total_invoices", snap.Summary.TotalInvoices).
		Float64("total_sales", snap.Summary.TotalSales).
		Bool("partial", partial).
		Msg("Snapshot loaded")

	return snap, nil
}

// summarize trusts precomputed envelope totals and computes the rest locally.
func summarize(first *api.TodayPage, invoices []models.Invoice) models.Summary {
	local := aggregate.Summarize(invoices)
	if !first.Envelope || first.TotalSales == nil {
		return local
	}

	s := models.Summary{
		TotalSales:    *first.TotalSales,
		TotalInvoices: local.TotalInvoices,
	}

	switch {
	case first.TotalNetSales != nil:
		s.TotalNetSales = *first.TotalNetSales
	case first.TotalWithoutTaxes != nil:
		s.TotalNetSales = *first.TotalWithoutTaxes
	default:
		s.TotalNetSales = s.TotalSales
	}

	if first.TotalInvoices != nil {
		s.TotalInvoices = *first.TotalInvoices
	}

	if first.AverageTicket != nil {
		s.AverageTicket = *first.AverageTicket
	} else {
		s.AverageTicket = aggregate.Average(s.TotalSales, s.TotalInvoices)
	}
	return s
}

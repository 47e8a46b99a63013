// Package realtime holds the reconciliation engine: the invoice set of the
// current day, its summary and its per-day history, seeded from snapshots and
// mutated by push events.
//
// State is not safe for concurrent use. The owning session serializes every
// call, which gives each reconciliation step run-to-completion semantics.
package realtime

import (
	"fmt"
	"slices"
	"time"

	"invoicewatch/internal/aggregate"
	"invoicewatch/internal/invoice"
	"invoicewatch/pkg/models"
)

// MaxVisibleInvoices bounds the invoice list exposed to consumers. Aggregates
// are never truncated.
const MaxVisibleInvoices = 700

// Outcome tells how a push event changed the state.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
	OutcomeRollover
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeRollover:
		return "rollover"
	default:
		return "unknown"
	}
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the clock used for "today" fallbacks.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithLimit overrides MaxVisibleInvoices. Non-positive values are ignored.
func WithLimit(limit int) Option {
	return func(s *State) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// State is the engine state of one session.
type State struct {
	normalizer *invoice.Normalizer
	now        func() time.Time
	limit      int

	invoices []models.Invoice
	index    map[string]struct{}
	summary  models.Summary
	live     aggregate.History
	server   []models.DailySales
}

// NewState creates an empty state.
func NewState(n *invoice.Normalizer, opts ...Option) *State {
	if n == nil {
		n = invoice.NewNormalizer(nil)
	}
	s := &State{
		normalizer: n,
		now:        time.Now,
		limit:      MaxVisibleInvoices,
		index:      map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalizer returns the normalizer the state reads invoices with.
func (s *State) Normalizer() *invoice.Normalizer {
	return s.normalizer
}

// Seed replaces the whole state with a snapshot. Server history is kept.
func (s *State) Seed(snap Snapshot) {
	s.setInvoices(invoice.SortDesc(snap.Invoices))
	s.summary = snap.Summary
	s.live = aggregate.Seed(snap.Invoices, s.normalizer.DayOf)
}

// Reset discards everything, leaving an empty list and zeroed aggregates.
func (s *State) Reset() {
	s.invoices = nil
	s.index = map[string]struct{}{}
	s.summary = models.Summary{}
	s.live = nil
	s.server = nil
}

// MergeServerHistory records the server-side daily history. Days seen live
// keep their live totals.
func (s *State) MergeServerHistory(entries []models.DailySales) {
	s.server = slices.Clone(entries)
}

// ApplyFrame decodes one push frame and applies it.
func (s *State) ApplyFrame(data []byte) (Outcome, error) {
	raw, err := invoice.Decode(data)
	if err != nil {
		return 0, err
	}
	return s.Apply(raw)
}

// Apply reconciles one push event into the state. Malformed payloads return
// an error and leave the state untouched.
func (s *State) Apply(raw models.RawInvoice) (Outcome, error) {
	const op = "Apply"

	candidate, err := s.normalizer.Normalize(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	today := s.normalizer.Today(s.now())
	messageDay := s.messageDay(candidate, raw, today)

	previousDay := today
	if len(s.invoices) > 0 {
		if day := s.normalizer.DayOf(s.invoices[0]); day != "" {
			previousDay = day
		}
	}
	isNewDay := len(s.invoices) > 0 && messageDay != previousDay

	existing := s.lookup(candidate)

	var (
		next    []models.Invoice
		outcome Outcome
	)
	switch {
	case isNewDay:
		outcome = OutcomeRollover
		next = []models.Invoice{candidate}
		s.summary, s.live = aggregate.Apply(s.summary, s.live, aggregate.Delta{
			Total:    candidate.Total,
			Net:      candidate.Subtotal,
			Rollover: true,
			Day:      messageDay,
		})

	case existing >= 0:
		outcome = OutcomeUpdated
		merged, err := s.normalizer.Merge(s.invoices[existing], candidate)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		next = slices.Clone(s.invoices)
		next[existing] = merged

	default:
		outcome = OutcomeInserted
		next = make([]models.Invoice, 0, len(s.invoices)+1)
		next = append(next, candidate)
		next = append(next, s.invoices...)
		s.summary, s.live = aggregate.Apply(s.summary, s.live, aggregate.Delta{
			Total:      candidate.Total,
			Net:        candidate.Subtotal,
			NewInvoice: true,
			Day:        messageDay,
		})
	}

	s.setInvoices(invoice.SortDesc(next))
	return outcome, nil
}

// messageDay resolves the day a push event belongs to, falling back through
// the raw timestamp fields and finally today.
func (s *State) messageDay(candidate models.Invoice, raw models.RawInvoice, today string) string {
	if day := s.normalizer.DayOf(candidate); day != "" {
		return day
	}
	for _, field := range []string{"timestamp", "created_at", "invoice_date"} {
		if day := s.normalizer.DayOfValue(raw[field]); day != "" {
			return day
		}
	}
	return today
}

// lookup returns the position of the stored invoice candidate refers to, or -1.
func (s *State) lookup(candidate models.Invoice) int {
	if candidate.Identifier != "" {
		if _, ok := s.index[candidate.Identifier]; !ok {
			return -1
		}
	}
	return slices.IndexFunc(s.invoices, func(existing models.Invoice) bool {
		return invoice.SameInvoice(existing, candidate)
	})
}

// setInvoices stores an ordered list, evicting the oldest entries beyond the
// limit, and rebuilds the identifier index from what is kept.
func (s *State) setInvoices(ordered []models.Invoice) {
	if len(ordered) > s.limit {
		ordered = slices.Clip(ordered[:s.limit])
	}
	s.invoices = ordered
	s.index = invoice.IndexOf(ordered)
}

// Invoices returns the ordered invoice list. The slice is shared and must not
// be modified; the state never mutates a slice it has handed out.
func (s *State) Invoices() []models.Invoice {
	return s.invoices
}

// Summary returns the running summary.
func (s *State) Summary() models.Summary {
	return s.summary
}

// History returns the per-day history: live buckets merged over the server
// daily-sales history.
func (s *State) History() aggregate.History {
	if len(s.server) == 0 {
		return slices.Clone(s.live)
	}
	return aggregate.Merge(s.live, s.server)
}

// Find returns the newest invoice with the given invoice number.
func (s *State) Find(invoiceNumber string) (models.Invoice, bool) {
	i := slices.IndexFunc(s.invoices, func(inv models.Invoice) bool {
		return inv.InvoiceNumber == invoiceNumber
	})
	if i < 0 {
		return models.Invoice{}, false
	}
	return s.invoices[i], true
}

// Len returns the number of stored invoices.
func (s *State) Len() int {
	return len(s.invoices)
}

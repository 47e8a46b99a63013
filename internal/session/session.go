// Package session owns everything one running dashboard needs: the engine
// state, the push channel supervisor, the periodic refresh timer and the
// invoice selection. It is the single reconciliation authority; all state
// mutations run under its mutex while network I/O happens outside it.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicewatch/internal/aggregate"
	"invoicewatch/internal/api"
	"invoicewatch/internal/invoice"
	"invoicewatch/internal/logger"
	"invoicewatch/internal/realtime"
	"invoicewatch/internal/supervisor"
	"invoicewatch/pkg/models"
)

var (
	// ErrRefreshInProgress is returned when a refresh is requested while one is running.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// API is the part of the invoicing server a session consumes. *api.Client implements it.
type API interface {
	realtime.TodaySource
	Items(ctx context.Context, invoiceNumber string) ([]models.LineItem, error)
	Forecast(ctx context.Context, branch string) (*models.Forecast, error)
	DailySales(ctx context.Context, days int, branch string) ([]models.DailySales, error)
	Rescan(ctx context.Context) error
}

// Config holds session settings.
type Config struct {
	// Branch is the push channel branch code. Default: models.DefaultBranch.
	Branch string

	// FilterBranch scopes forecast and daily-sales requests. Default: api.AllBranches.
	FilterBranch string

	// HistoryDays is how many days of server history are requested. Default: 10.
	HistoryDays int

	// RefreshMin and RefreshMax bound the random periodic refresh delay.
	// Defaults: 15 and 30 seconds.
	RefreshMin time.Duration
	RefreshMax time.Duration

	// AutoRefresh enables the periodic refresh.
	AutoRefresh bool

	// ReconnectDelay is the push channel backoff. Default: 4 seconds.
	ReconnectDelay time.Duration

	// Location is the timezone calendar days are computed in. Default: time.Local.
	Location *time.Location

	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Branch:         models.DefaultBranch,
		FilterBranch:   api.AllBranches,
		HistoryDays:    10,
		RefreshMin:     15 * time.Second,
		RefreshMax:     30 * time.Second,
		AutoRefresh:    true,
		ReconnectDelay: supervisor.DefaultReconnectDelay,
		Location:       time.Local,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Branch == "" {
		c.Branch = d.Branch
	}
	if c.FilterBranch == "" {
		c.FilterBranch = d.FilterBranch
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = d.HistoryDays
	}
	if c.RefreshMin <= 0 {
		c.RefreshMin = d.RefreshMin
	}
	if c.RefreshMax < c.RefreshMin {
		c.RefreshMax = c.RefreshMin
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Session is one running dashboard.
type Session struct {
	id     string
	cfg    Config
	client API
	loader *realtime.Loader
	sup    *supervisor.Supervisor
	log    zerolog.Logger

	mu           sync.Mutex
	state        *realtime.State
	forecast     *models.Forecast
	selected     string
	items        []models.LineItem
	loadingItems bool
	refreshing   bool
	closed       bool
	partial      bool
	lastRefresh  time.Time
	lastErr      error
	refreshTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a session. dial opens the push channel; it may be nil for
// sessions that only read snapshots.
func New(client API, dial supervisor.DialFunc, cfg Config) *Session {
	cfg.applyDefaults()

	id := uuid.NewString()
	n := invoice.NewNormalizer(cfg.Location)

	s := &Session{
		id:     id,
		cfg:    cfg,
		client: client,
		loader: realtime.NewLoader(client, n),
		log:    logger.WithSession("session", id, cfg.Branch),
		state:  realtime.NewState(n, realtime.WithClock(cfg.Clock)),
	}
	if dial != nil {
		s.sup = supervisor.New(dial, s.HandleFrame, supervisor.Config{ReconnectDelay: cfg.ReconnectDelay})
	}
	return s
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Start opens the push channel, loads the initial snapshot and schedules the
// periodic refresh. A snapshot failure is returned for reporting; the session
// stays live and recovers on the next refresh.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.refreshing = true
	runCtx := s.ctx
	s.mu.Unlock()

	s.log.Info().Msg("Starting session")

	if s.sup != nil {
		s.sup.Start(runCtx)
	}

	err := s.load(runCtx)

	s.mu.Lock()
	s.refreshing = false
	s.mu.Unlock()

	if s.cfg.AutoRefresh {
		s.scheduleRefresh()
	}
	return err
}

// Refresh is the manual refresh path: force a reconnect, ask the server to
// re-scan, then reload the snapshot, the daily-sales history and the forecast.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.refreshing {
		s.mu.Unlock()
		return ErrRefreshInProgress
	}
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	if s.sup != nil {
		s.sup.ForceReconnect()
	}

	if err := s.client.Rescan(ctx); err != nil {
		s.log.Error().Err(err).Msg("Rescan request failed")
	}

	return s.load(ctx)
}

// load re-seeds the state from a snapshot and refetches history and forecast.
// Results that arrive after Close are discarded.
func (s *Session) load(ctx context.Context) error {
	snap, snapErr := s.loader.Load(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if snapErr != nil {
		s.log.Error().Err(snapErr).Msg("Snapshot failed, resetting state")
		s.state.Reset()
		s.partial = false
	} else {
		s.state.Seed(snap)
		s.partial = snap.Partial
	}
	s.lastErr = snapErr
	s.lastRefresh = s.cfg.Clock()
	s.mu.Unlock()

	history, histErr := s.client.DailySales(ctx, s.cfg.HistoryDays, s.cfg.FilterBranch)
	if histErr != nil {
		s.log.Error().Err(histErr).Msg("Failed to load daily sales history")
	}

	forecast, fcErr := s.client.Forecast(ctx, s.cfg.FilterBranch)
	if fcErr != nil {
		s.log.Error().Err(fcErr).Msg("Failed to load sales forecast")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state.MergeServerHistory(history)
	s.forecast = forecast
	return snapErr
}

func (s *Session) scheduleRefresh() {
	delay := s.cfg.RefreshMin
	if spread := s.cfg.RefreshMax - s.cfg.RefreshMin; spread > 0 {
		delay += rand.N(spread)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	ctx := s.ctx
	s.refreshTimer = time.AfterFunc(delay, func() {
		defer s.scheduleRefresh()

		err := s.Refresh(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrRefreshInProgress), errors.Is(err, ErrClosed):
			s.log.Debug().Err(err).Msg("Periodic refresh skipped")
		default:
			s.log.Warn().Err(err).Msg("Periodic refresh failed")
		}
	})
	s.log.Debug().Dur("delay", delay).Msg("Next refresh scheduled")
}

// HandleFrame applies one push frame. Malformed frames are logged and dropped.
func (s *Session) HandleFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	outcome, err := s.state.ApplyFrame(frame)
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(frame)).Msg("Dropping push frame")
		return
	}

	summary := s.state.Summary()
	s.log.Debug().
		Stringer("outcome", outcome).
		Int("invoices", summary.TotalInvoices).
		Float64("total_sales", summary.TotalSales).
		Msg("Push event applied")
}

// SelectInvoice toggles the detail selection. Selecting the selected invoice
// again clears it; otherwise its line items are fetched. A failed fetch leaves
// an empty item list.
func (s *Session) SelectInvoice(ctx context.Context, invoiceNumber string) (*Selection, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.selected == invoiceNumber {
		s.selected = ""
		s.items = nil
		s.loadingItems = false
		s.mu.Unlock()
		return nil, nil
	}
	s.selected = invoiceNumber
	s.items = nil
	s.loadingItems = true
	s.mu.Unlock()

	items, err := s.client.Items(ctx, invoiceNumber)
	if err != nil {
		s.log.Error().Err(err).Str("invoice_number", invoiceNumber).Msg("Failed to load invoice items")
		items = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.selected != invoiceNumber {
		return nil, nil
	}
	s.items = items
	s.loadingItems = false
	return s.selectionLocked(), err
}

// Close stops the push channel and the refresh timer. Fetches still in
// flight are discarded when they resolve.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if s.sup != nil {
		s.sup.Stop()
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info().Msg("Session closed")
}

// Selection is the selected invoice with its fetched line items.
type Selection struct {
	InvoiceNumber string               `json:"invoice_number"`
	Invoice       *models.Invoice      `json:"invoice,omitempty"`
	Items         []models.LineItem    `json:"items"`
	Loading       bool                 `json:"loading"`
	Detail        models.InvoiceDetail `json:"detail"`
}

func (s *Session) selectionLocked() *Selection {
	if s.selected == "" {
		return nil
	}
	sel := &Selection{
		InvoiceNumber: s.selected,
		Items:         s.items,
		Loading:       s.loadingItems,
	}
	if inv, ok := s.state.Find(s.selected); ok {
		sel.Invoice = &inv
	}
	sel.Detail = invoice.Detail(sel.Invoice, sel.Items)
	return sel
}

// View is an immutable snapshot of the session for consumers.
type View struct {
	SessionID   string            `json:"session_id"`
	Status      supervisor.Status `json:"-"`
	StatusText  string            `json:"status"`
	Invoices    []models.Invoice  `json:"invoices"`
	Summary     models.Summary    `json:"summary"`
	History     aggregate.History `json:"history"`
	Forecast    *models.Forecast  `json:"forecast,omitempty"`
	Selection   *Selection        `json:"selection,omitempty"`
	Refreshing  bool              `json:"refreshing"`
	Partial     bool              `json:"partial"`
	LastRefresh time.Time         `json:"last_refresh"`
	LastError   string            `json:"last_error,omitempty"`
}

// View returns a consistent snapshot of the session. The returned slices are
// never modified by the session.
func (s *Session) View() View {
	status := supervisor.Disconnected
	if s.sup != nil {
		status = s.sup.Status()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID:   s.id,
		Status:      status,
		StatusText:  status.String(),
		Invoices:    s.state.Invoices(),
		Summary:     s.state.Summary(),
		History:     s.state.History(),
		Forecast:    s.forecast,
		Selection:   s.selectionLocked(),
		Refreshing:  s.refreshing,
		Partial:     s.partial,
		LastRefresh: s.lastRefresh,
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
	}
	return v
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicewatch/internal/api"
	"invoicewatch/internal/session"
	"invoicewatch/pkg/models"
)

var bogota = time.FixedZone("COT", -5*60*60)

type fakeAPI struct {
	mu       sync.Mutex
	today    []models.RawInvoice
	todayErr error
	items    map[string][]models.LineItem
}

func (f *fakeAPI) Today(context.Context, *api.Page) (*api.TodayPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.todayErr != nil {
		return nil, f.todayErr
	}
	return &api.TodayPage{Invoices: f.today}, nil
}

func (f *fakeAPI) Items(_ context.Context, number string) ([]models.LineItem, error) {
	items, ok := f.items[number]
	if !ok {
		return nil, &api.StatusError{Op: "Items", StatusCode: http.StatusNotFound}
	}
	return items, nil
}

func (f *fakeAPI) Forecast(context.Context, string) (*models.Forecast, error) {
	return &models.Forecast{Branch: api.AllBranches, Detail: models.ForecastDetail{Total: 900}}, nil
}

func (f *fakeAPI) DailySales(context.Context, int, string) ([]models.DailySales, error) {
	return []models.DailySales{{Date: "2024-04-30", Total: 50, Invoices: 2}}, nil
}

func (f *fakeAPI) Rescan(context.Context) error { return nil }

func newTestServer(t *testing.T) (*Server, *fakeAPI) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := &fakeAPI{
		today: []models.RawInvoice{
			{"invoice_number": "FV-3", "total": 300, "items": 5, "branch": "CED", "timestamp": "2024-05-01T10:02:30"},
			{"invoice_number": "FV-2", "total": 200, "items": 1, "timestamp": "2024-05-01T10:01:10"},
			{"invoice_number": "FV-1", "total": 50, "items": 3, "timestamp": "2024-05-01T10:01:05"},
		},
		items: map[string][]models.LineItem{
			"FV-2": {{Description: "bread", Subtotal: 50}, {Description: "coffee", Subtotal: 150}},
		},
	}
	sess := session.New(client, nil, session.Config{
		Location: bogota,
		Clock:    func() time.Time { return time.Date(2024, 5, 1, 18, 0, 0, 0, bogota) },
	})
	t.Cleanup(sess.Close)
	require.NoError(t, sess.Start(context.Background()))

	return New(sess), client
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[StatusResponse](t, w)
	assert.Equal(t, "disconnected", st.Status)
	assert.Equal(t, 3, st.Invoices)
	assert.NotEmpty(t, st.SessionID)
}

func TestSummaryHistoryForecast(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Summary{TotalSales: 550, TotalNetSales: 550, TotalInvoices: 3, AverageTicket: 550.0 / 3},
		decode[models.Summary](t, w))

	w = do(t, s, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.Bucket](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, 600.0, history[1].Cumulative)

	w = do(t, s, http.MethodGet, "/forecast")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 900.0, decode[models.Forecast](t, w).Detail.Total)
}

func TestListInvoicesWithFilters(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/invoices")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[InvoiceListResponse](t, w)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 1, all.Page.Page)
	assert.Zero(t, all.ActiveFilters)
	assert.Equal(t, "FV-3", all.Invoices[0].InvoiceNumber)

	w = do(t, s, http.MethodGet, "/invoices?branch=FLO&min_total=100&page=7")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[InvoiceListResponse](t, w)
	assert.Equal(t, 2, got.ActiveFilters)
	assert.Equal(t, 1, got.Page.Page)
	require.Len(t, got.Invoices, 1)
	assert.Equal(t, "FV-2", got.Invoices[0].InvoiceNumber)

	w = do(t, s, http.MethodGet, "/invoices?query=nothing")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(mustMarshal(t, decode[InvoiceListResponse](t, w).Invoices)))

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/invoices?max_items=many").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/invoices?page=two").Code)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestGetInvoice(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/invoices/FV-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50.0, decode[models.Invoice](t, w).Total)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/invoices/FV-99").Code)
}

func TestInvoiceItemsAndSelection(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/invoices/FV-2/items")
	require.Equal(t, http.StatusOK, w.Code)
	sel := decode[session.Selection](t, w)
	assert.Equal(t, "FV-2", sel.InvoiceNumber)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, "bread", sel.Items[0].Description)
	assert.Equal(t, models.InvoiceDetail{ItemCount: 2, Subtotal: 200, Total: 200}, sel.Detail)

	// Reading again keeps the selection.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/invoices/FV-2/items").Code)

	// Toggling the selected invoice clears it.
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/invoices/FV-2/select").Code)

	w = do(t, s, http.MethodGet, "/invoices/FV-1/items")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestBranchesAndSeries(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/branches")
	require.Equal(t, http.StatusOK, w.Code)
	b := decode[BranchesResponse](t, w)
	assert.Equal(t, []string{"CED", "FLO"}, b.Branches)
	assert.Equal(t, 300.0, b.Totals.Max)
	assert.Equal(t, 1.0, b.Items.Min)

	w = do(t, s, http.MethodGet, "/series?bucket=1m")
	require.Equal(t, http.StatusOK, w.Code)
	var series struct {
		Points []json.RawMessage `json:"points"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	assert.Len(t, series.Points, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/series?bucket=-1m").Code)
}

func TestRefresh(t *testing.T) {
	s, client := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/refresh").Code)

	client.mu.Lock()
	client.todayErr = errors.New("connection refused")
	client.mu.Unlock()

	w := do(t, s, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

type busyDashboard struct{ view session.View }

func (b busyDashboard) View() session.View          { return b.view }
func (busyDashboard) Refresh(context.Context) error { return session.ErrRefreshInProgress }
func (busyDashboard) SelectInvoice(context.Context, string) (*session.Selection, error) {
	return nil, session.ErrClosed
}

func TestRefreshConflictAndClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(busyDashboard{})

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/refresh").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/invoices/A/select").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/forecast").Code)

	w := do(t, s, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

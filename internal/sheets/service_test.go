package sheets

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"invoicewatch/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"edit url", "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", "1AbC-d_9", false},
		{"bare url", "https://docs.google.com/spreadsheets/d/xyz", "xyz", false},
		{"not a sheet", "https://example.com/doc/1", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSpreadsheetID(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryValues(t *testing.T) {
	b := models.Bucket{Date: "2024-05-01", Total: 120.5, Cumulative: 300, Invoices: 4}

	assert.Equal(t, []interface{}{"2024-05-01", "CED", 4, 120.5, 300.0, "2024-05-02 08:00:00"},
		historyValues(b, "CED", "2024-05-02 08:00:00"))
	assert.Equal(t, "all", historyValues(b, "", "x")[1])
}

func TestInvoiceValues(t *testing.T) {
	inv := models.Invoice{
		InvoiceNumber: "FV-10",
		Timestamp:     "2024-05-01T10:00:00.000-05:00",
		Branch:        "FLO",
		Items:         3,
		Subtotal:      84,
		Total:         100,
	}
	assert.Equal(t,
		[]interface{}{"FV-10", "2024-05-01T10:00:00.000-05:00", "FLO", 3, 84.0, 100.0, "now"},
		invoiceValues(inv, "now"))
}

// fakeSheets records the calls the exporter makes against the Sheets REST API.
type fakeSheets struct {
	mu         sync.Mutex
	hasSheet   bool
	hasHeaders bool
	appended   [][]interface{}
	headers    [][]interface{}
	batches    int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.appended = append(f.appended, body.Values...)
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.batches++
		f.hasSheet = true
		_, _ = io.WriteString(w, `{"replies":[{"addSheet":{"properties":{"sheetId":9,"title":"History"}}}]}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.headers = body.Values
		f.hasHeaders = true
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		if f.hasHeaders {
			_, _ = io.WriteString(w, `{"values":[["Date"]]}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet:
		if f.hasSheet {
			_, _ = io.WriteString(w, `{"sheets":[{"properties":{"sheetId":9,"title":"History"}}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"sheets":[]}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestService(t *testing.T, fake *fakeSheets) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := newService(t.Context(), "https://docs.google.com/spreadsheets/d/sheet123/edit",
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportHistoryCreatesSheetAndHeaders(t *testing.T) {
	fake := &fakeSheets{}
	svc := newTestService(t, fake)

	history := []models.Bucket{
		{Date: "2024-04-30", Total: 200, Cumulative: 200, Invoices: 8},
		{Date: "2024-05-01", Total: 100, Cumulative: 300, Invoices: 1},
	}
	require.NoError(t, svc.ExportHistory(t.Context(), history, "", "History"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	// One batch adds the sheet and one formats the headers.
	assert.Equal(t, 2, fake.batches)
	require.Len(t, fake.headers, 1)
	assert.Equal(t, "Date", fake.headers[0][0])
	require.Len(t, fake.appended, 2)
	assert.Equal(t, "2024-05-01", fake.appended[1][0])
	assert.Equal(t, "all", fake.appended[1][1])
	assert.Equal(t, "2024-05-02 08:00:00", fake.appended[1][5])
}

func TestExportInvoicesReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{hasSheet: true, hasHeaders: true}
	svc := newTestService(t, fake)

	invoices := []models.Invoice{{InvoiceNumber: "FV-1", Total: 10, Subtotal: 10, Branch: "FLO"}}
	require.NoError(t, svc.ExportInvoices(t.Context(), invoices, "History"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Zero(t, fake.batches)
	assert.Nil(t, fake.headers)
	require.Len(t, fake.appended, 1)
	assert.Equal(t, "FV-1", fake.appended[0][0])
}

func TestNewServiceRejectsBadURL(t *testing.T) {
	_, err := newService(t.Context(), "https://example.com/nope", option.WithoutAuthentication())
	assert.Error(t, err)
}

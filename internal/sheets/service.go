package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"invoicewatch/internal/logger"
	"invoicewatch/pkg/models"
)

// ErrNoCredentials is returned when no service account credentials are configured.
var ErrNoCredentials = errors.New("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service exports dashboard data to a Google spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	now           func() time.Time
	log           zerolog.Logger
}

// NewSheetsService creates a Service for the spreadsheet at sheetURL using
// service account credentials from the environment.
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return newService(ctx, sheetURL, option.WithHTTPClient(config.Client(ctx)))
}

func newService(ctx context.Context, sheetURL string, opts ...option.ClientOption) (*Service, error) {
	const op = "newService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		now:           time.Now,
		log:           log,
	}, nil
}

func credentialsFromEnv() ([]byte, error) {
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, ErrNoCredentials
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// table describes the columns of one kind of export.
type table struct {
	headers   []interface{}
	lastCol   string
	numCols   int64
	rowValues func(row int) []interface{}
	rows      int
}

var historyHeaders = []interface{}{"Date", "Branch", "Invoices", "Total", "Cumulative", "Exported"}

var invoiceHeaders = []interface{}{"Invoice", "Timestamp", "Branch", "Items", "Subtotal", "Total", "Exported"}

// ExportHistory appends the per-day history buckets to sheetName.
func (s *Service) ExportHistory(ctx context.Context, history []models.Bucket, branch, sheetName string) error {
	exportedAt := s.now().Format(time.DateTime)
	return s.appendTable(ctx, "ExportHistory", sheetName, table{
		headers: historyHeaders,
		lastCol: "F",
		numCols: int64(len(historyHeaders)),
		rows:    len(history),
		rowValues: func(i int) []interface{} {
			return historyValues(history[i], branch, exportedAt)
		},
	})
}

// ExportInvoices appends invoices to sheetName.
func (s *Service) ExportInvoices(ctx context.Context, invoices []models.Invoice, sheetName string) error {
	exportedAt := s.now().Format(time.DateTime)
	return s.appendTable(ctx, "ExportInvoices", sheetName, table{
		headers: invoiceHeaders,
		lastCol: "G",
		numCols: int64(len(invoiceHeaders)),
		rows:    len(invoices),
		rowValues: func(i int) []interface{} {
			return invoiceValues(invoices[i], exportedAt)
		},
	})
}

func (s *Service) appendTable(ctx context.Context, op, sheetName string, t table) error {
	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", t.rows).
		Msg("Writing rows to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName, t); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}
	if t.rows == 0 {
		return nil
	}

	values := make([][]interface{}, 0, t.rows)
	for i := range t.rows {
		values = append(values, t.rowValues(i))
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", sheetName, t.lastCol),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote rows to Google Sheet")
	return nil
}

func historyValues(b models.Bucket, branch, exportedAt string) []interface{} {
	if branch == "" {
		branch = "all"
	}
	return []interface{}{
		b.Date,       // A: Date
		branch,       // B: Branch
		b.Invoices,   // C: Invoices
		b.Total,      // D: Total
		b.Cumulative, // E: Cumulative
		exportedAt,   // F: Exported
	}
}

func invoiceValues(inv models.Invoice, exportedAt string) []interface{} {
	return []interface{}{
		inv.InvoiceNumber, // A: Invoice
		inv.Timestamp,     // B: Timestamp
		inv.Branch,        // C: Branch
		inv.Items,         // D: Items
		inv.Subtotal,      // E: Subtotal
		inv.Total,         // F: Total
		exportedAt,        // G: Exported
	}
}

// ensureSheetWithHeaders ensures the sheet exists and has the table headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string, t table) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", sheetName, t.lastCol)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{t.headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID, t.numCols); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and auto-sizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID, numCols int64) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   numCols,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   numCols,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}

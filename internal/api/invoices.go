package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"invoicewatch/internal/invoice"
	"invoicewatch/pkg/models"
)

// AllBranches is the branch filter value meaning "no filter".
const AllBranches = "all"

// Page selects a slice of today's invoices.
type Page struct {
	Offset int
	Limit  int
}

// TodayPage is one response of /invoices/today. Bare-array responses have
// Envelope false and no metadata; envelope fields are nil when omitted.
type TodayPage struct {
	Invoices []models.RawInvoice
	Envelope bool

	TotalInvoices     *int
	Offset            *int
	Limit             *int
	TotalSales        *float64
	TotalNetSales     *float64
	TotalWithoutTaxes *float64
	AverageTicket     *float64
}

// Today fetches today's invoices. A nil page requests the server default.
func (c *Client) Today(ctx context.Context, page *Page) (*TodayPage, error) {
	const op = "Today"

	var query url.Values
	if page != nil {
		query = url.Values{}
		query.Set("offset", strconv.Itoa(page.Offset))
		if page.Limit > 0 {
			query.Set("limit", strconv.Itoa(page.Limit))
		}
	}

	value, err := c.getJSON(ctx, op, "/invoices/today", query)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case []any:
		return &TodayPage{Invoices: rawList(v)}, nil
	case map[string]any:
		list, _ := v["invoices"].([]any)
		return &TodayPage{
			Invoices:          rawList(list),
			Envelope:          true,
			TotalInvoices:     optionalInt(v, "total_invoices"),
			Offset:            optionalInt(v, "offset"),
			Limit:             optionalInt(v, "limit"),
			TotalSales:        optionalNumber(v, "total_sales"),
			TotalNetSales:     optionalNumber(v, "total_net_sales"),
			TotalWithoutTaxes: optionalNumber(v, "total_without_taxes"),
			AverageTicket:     optionalNumber(v, "average_ticket"),
		}, nil
	default:
		return nil, fmt.Errorf("%s: %w: %T", op, ErrUnexpectedPayload, value)
	}
}

// Items fetches the line items of one invoice, ordered for display.
func (c *Client) Items(ctx context.Context, invoiceNumber string) ([]models.LineItem, error) {
	const op = "Items"

	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, fmt.Errorf("%s: invoice number is required", op)
	}

	value, err := c.getJSON(ctx, op, "/invoices/"+url.PathEscape(invoiceNumber)+"/items", nil)
	if err != nil {
		return nil, err
	}

	body, _ := value.(map[string]any)
	list, _ := body["items"].([]any)

	items := make([]models.LineItem, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := models.LineItem{
			Description: invoice.Stringify(m["description"]),
			Quantity:    invoice.ToNumber(m["quantity"]),
			UnitPrice:   invoice.ToNumber(m["unit_price"]),
			Subtotal:    invoice.ToNumber(m["subtotal"]),
		}
		if n := optionalInt(m, "line_number"); n != nil {
			item.LineNumber = n
		}
		items = append(items, item)
	}
	return invoice.SortItems(items), nil
}

// Forecast fetches today's sales forecast. Branch "" or AllBranches means no filter.
func (c *Client) Forecast(ctx context.Context, branch string) (*models.Forecast, error) {
	const op = "Forecast"

	query := url.Values{}
	if b := strings.TrimSpace(branch); b != "" && b != AllBranches {
		query.Set("branch", b)
	}

	value, err := c.getJSON(ctx, op, "/invoices/today/forecast", query)
	if err != nil {
		return nil, err
	}

	body, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", op, ErrUnexpectedPayload, value)
	}
	return parseForecast(body), nil
}

func parseForecast(body map[string]any) *models.Forecast {
	today, _ := body["today"].(map[string]any)
	detail, _ := body["forecast"].(map[string]any)

	f := &models.Forecast{
		Branch: invoice.Stringify(body["branch"]),
		Today: models.ForecastToday{
			CurrentTotal:       invoice.ToNumber(today["current_total"]),
			CurrentNetTotal:    invoice.ToNumber(today["current_net_total"]),
			InvoiceCount:       invoice.ToInt(today["invoice_count"]),
			FirstChunkTotal:    invoice.ToNumber(today["first_chunk_total"]),
			FirstChunkInvoices: invoice.ToInt(today["first_chunk_invoices"]),
			AverageTicket:      invoice.ToNumber(today["average_ticket"]),
		},
		Detail: models.ForecastDetail{
			Total:                    invoice.ToNumber(detail["total"]),
			Remaining:                invoice.ToNumber(detail["remaining"]),
			Method:                   invoice.Stringify(detail["method"]),
			Ratio:                    invoice.ToNumber(detail["ratio"]),
			HistoryDays:              invoice.ToInt(detail["history_days"]),
			HistorySamples:           invoice.ToInt(detail["history_samples"]),
			HistoryAverageTotal:      invoice.ToNumber(detail["history_average_total"]),
			HistoryAverageFirstChunk: invoice.ToNumber(detail["history_average_first_chunk"]),
			GeneratedAt:              invoice.Stringify(detail["generated_at"]),
			PreviousTotal:            invoice.ToNumber(detail["previous_total"]),
			PreviousNetTotal:         invoice.ToNumber(detail["previous_net_total"]),
			PreviousInvoiceCount:     invoice.ToInt(detail["previous_invoice_count"]),
			PreviousDate:             invoice.Stringify(detail["previous_date"]),
		},
	}
	if f.Branch == "" {
		f.Branch = AllBranches
	}

	samples, _ := body["history"].([]any)
	for _, entry := range samples {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		f.Sample = append(f.Sample, models.ForecastPoint{
			Date:            invoice.Stringify(m["date"]),
			Total:           invoice.ToNumber(m["total"]),
			FirstChunkTotal: invoice.ToNumber(m["first_chunk_total"]),
			Ratio:           invoice.ToNumber(m["ratio"]),
		})
	}
	return f
}

// DailySales fetches per-day sales for the last days days.
func (c *Client) DailySales(ctx context.Context, days int, branch string) ([]models.DailySales, error) {
	const op = "DailySales"

	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	if b := strings.TrimSpace(branch); b != "" && b != AllBranches {
		query.Set("branch", b)
	}

	value, err := c.getJSON(ctx, op, "/invoices/daily-sales", query)
	if err != nil {
		return nil, err
	}

	var list []any
	switch v := value.(type) {
	case []any:
		list = v
	case map[string]any:
		list, _ = v["history"].([]any)
	}

	history := make([]models.DailySales, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok || m["date"] == nil {
			continue
		}
		history = append(history, models.DailySales{
			Date:       invoice.Stringify(m["date"]),
			Total:      invoice.ToNumber(m["total"]),
			Invoices:   invoice.ToInt(m["invoices"]),
			Cumulative: optionalNumber(m, "cumulative"),
		})
	}
	return history, nil
}

func rawList(list []any) []models.RawInvoice {
	out := make([]models.RawInvoice, 0, len(list))
	for _, entry := range list {
		if raw, ok := invoice.AsRaw(entry); ok {
			out = append(out, raw)
		}
	}
	return out
}

func optionalNumber(m map[string]any, key string) *float64 {
	value, ok := m[key]
	if !ok || value == nil {
		return nil
	}
	n := invoice.ToNumber(value)
	return &n
}

func optionalInt(m map[string]any, key string) *int {
	value, ok := m[key]
	if !ok || value == nil {
		return nil
	}
	n := invoice.ToInt(value)
	return &n
}

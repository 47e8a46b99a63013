package models

// Summary holds the running aggregates for the current day.
type Summary struct {
	TotalSales    float64 `json:"totalSales"`
	TotalNetSales float64 `json:"totalNetSales"`
	TotalInvoices int     `json:"totalInvoices"`
	AverageTicket float64 `json:"averageTicket"`
}

// Bucket is one calendar day of the cumulative sales history.
type Bucket struct {
	Date       string  `json:"date"` // YYYY-MM-DD
	Total      float64 `json:"total"`
	Cumulative float64 `json:"cumulative"`
	Invoices   int     `json:"invoices"`
}

// DailySales is one day of server-side history as returned by /invoices/daily-sales.
type DailySales struct {
	Date       string   `json:"date"`
	Total      float64  `json:"total"`
	Invoices   int      `json:"invoices"`
	Cumulative *float64 `json:"cumulative,omitempty"`
}

// Forecast is the normalized payload of /invoices/today/forecast.
type Forecast struct {
	Branch string          `json:"branch"`
	Today  ForecastToday   `json:"today"`
	Detail ForecastDetail  `json:"forecast"`
	Sample []ForecastPoint `json:"history"`
}

type ForecastToday struct {
	CurrentTotal       float64 `json:"current_total"`
	CurrentNetTotal    float64 `json:"current_net_total"`
	InvoiceCount       int     `json:"invoice_count"`
	FirstChunkTotal    float64 `json:"first_chunk_total"`
	FirstChunkInvoices int     `json:"first_chunk_invoices"`
	AverageTicket      float64 `json:"average_ticket"`
}

type ForecastDetail struct {
	Total                    float64 `json:"total"`
	Remaining                float64 `json:"remaining"`
	Method                   string  `json:"method,omitempty"`
	Ratio                    float64 `json:"ratio"`
	HistoryDays              int     `json:"history_days"`
	HistorySamples           int     `json:"history_samples"`
	HistoryAverageTotal      float64 `json:"history_average_total"`
	HistoryAverageFirstChunk float64 `json:"history_average_first_chunk"`
	GeneratedAt              string  `json:"generated_at,omitempty"`
	PreviousTotal            float64 `json:"previous_total"`
	PreviousNetTotal         float64 `json:"previous_net_total"`
	PreviousInvoiceCount     int     `json:"previous_invoice_count"`
	PreviousDate             string  `json:"previous_date,omitempty"`
}

type ForecastPoint struct {
	Date            string  `json:"date"`
	Total           float64 `json:"total"`
	FirstChunkTotal float64 `json:"first_chunk_total"`
	Ratio           float64 `json:"ratio"`
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"invoicewatch/internal/realtime"
	"invoicewatch/internal/session"
	"invoicewatch/internal/view"
	"invoicewatch/pkg/models"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse describes the session and its push channel.
type StatusResponse struct {
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"`
	Invoices    int       `json:"invoices"`
	Refreshing  bool      `json:"refreshing"`
	Partial     bool      `json:"partial"`
	LastRefresh time.Time `json:"last_refresh"`
	LastError   string    `json:"last_error,omitempty"`
}

// InvoiceListResponse is one page of the filtered invoice list.
type InvoiceListResponse struct {
	view.Page
	Filters       view.Filters `json:"filters"`
	ActiveFilters int          `json:"active_filters"`
}

// BranchesResponse lists branch codes and the value ranges of the current list.
type BranchesResponse struct {
	Branches []string   `json:"branches"`
	Totals   view.Range `json:"totals"`
	Items    view.Range `json:"items"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "invoicewatch"})
}

func (s *Server) status(c *gin.Context) {
	v := s.dashboard.View()
	c.JSON(http.StatusOK, StatusResponse{
		SessionID:   v.SessionID,
		Status:      v.StatusText,
		Invoices:    len(v.Invoices),
		Refreshing:  v.Refreshing,
		Partial:     v.Partial,
		LastRefresh: v.LastRefresh,
		LastError:   v.LastError,
	})
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.dashboard.View().Summary)
}

func (s *Server) history(c *gin.Context) {
	h := s.dashboard.View().History
	if h == nil {
		h = []models.Bucket{}
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) forecast(c *gin.Context) {
	f := s.dashboard.View().Forecast
	if f == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Forecast not available"})
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) series(c *gin.Context) {
	width := view.DefaultBucket
	if raw := c.Query("bucket"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid bucket",
				Message: fmt.Sprintf("bucket must be a positive duration, got %q", raw),
			})
			return
		}
		width = d
	}
	c.JSON(http.StatusOK, view.BillingSeries(s.dashboard.View().Invoices, width))
}

func (s *Server) branches(c *gin.Context) {
	invoices := s.dashboard.View().Invoices
	branches := view.Branches(invoices)
	if branches == nil {
		branches = []string{}
	}
	c.JSON(http.StatusOK, BranchesResponse{
		Branches: branches,
		Totals:   view.TotalsRange(invoices),
		Items:    view.ItemsRange(invoices),
	})
}

func (s *Server) refresh(c *gin.Context) {
	err := s.dashboard.Refresh(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, s.dashboard.View().Summary)
	case errors.Is(err, session.ErrRefreshInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Refresh already in progress"})
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Session closed"})
	case errors.Is(err, realtime.ErrSnapshotFailed):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Snapshot failed", Message: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Refresh failed", Message: err.Error()})
	}
}

func (s *Server) listInvoices(c *gin.Context) {
	filters := view.Filters{
		Query:  c.Query("query"),
		Branch: c.Query("branch"),
	}
	bounds := []struct {
		key string
		dst **float64
	}{
		{"min_total", &filters.MinTotal},
		{"max_total", &filters.MaxTotal},
		{"min_items", &filters.MinItems},
		{"max_items", &filters.MaxItems},
	}
	for _, b := range bounds {
		v, err := optionalFloat(c, b.key)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid filter", Message: err.Error()})
			return
		}
		*b.dst = v
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid page", Message: err.Error()})
			return
		}
		page = p
	}

	filtered := view.Filter(s.dashboard.View().Invoices, filters)
	p := view.Paginate(filtered, page)
	if p.Invoices == nil {
		p.Invoices = []models.Invoice{}
	}
	c.JSON(http.StatusOK, InvoiceListResponse{
		Page:          p,
		Filters:       filters,
		ActiveFilters: filters.Active(),
	})
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return &v, nil
}

func (s *Server) getInvoice(c *gin.Context) {
	number := c.Param("number")
	for _, inv := range s.dashboard.View().Invoices {
		if inv.InvoiceNumber == number {
			c.JSON(http.StatusOK, inv)
			return
		}
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "Invoice not found", Message: number})
}

// invoiceItems returns the selection for number, selecting it first when
// another invoice (or none) is selected.
func (s *Server) invoiceItems(c *gin.Context) {
	number := c.Param("number")
	if sel := s.dashboard.View().Selection; sel != nil && sel.InvoiceNumber == number && !sel.Loading {
		c.JSON(http.StatusOK, sel)
		return
	}

	sel, err := s.dashboard.SelectInvoice(c.Request.Context(), number)
	s.writeSelection(c, sel, err)
}

func (s *Server) toggleSelection(c *gin.Context) {
	sel, err := s.dashboard.SelectInvoice(c.Request.Context(), c.Param("number"))
	if err == nil && sel == nil {
		c.Status(http.StatusNoContent)
		return
	}
	s.writeSelection(c, sel, err)
}

func (s *Server) writeSelection(c *gin.Context, sel *session.Selection, err error) {
	switch {
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Session closed"})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Failed to load invoice items", Message: err.Error()})
	case sel == nil:
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Selection changed while loading"})
	default:
		c.JSON(http.StatusOK, sel)
	}
}

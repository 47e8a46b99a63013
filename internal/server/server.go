// Package server exposes a running dashboard session over a read-only JSON
// API, plus manual refresh and invoice selection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"invoicewatch/internal/logger"
	"invoicewatch/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Dashboard is the session surface the server reads from. *session.Session implements it.
type Dashboard interface {
	View() session.View
	Refresh(ctx context.Context) error
	SelectInvoice(ctx context.Context, invoiceNumber string) (*session.Selection, error)
}

// Server serves a Dashboard over HTTP.
type Server struct {
	dashboard Dashboard
	router    *gin.Engine
	log       zerolog.Logger
}

// New creates a Server for d.
func New(d Dashboard) *Server {
	s := &Server{
		dashboard: d,
		router:    gin.New(),
		log:       logger.WithComponent("server"),
	}
	s.router.Use(gin.Recovery(), RequestID(), StructuredLogger(s.log))
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/status", s.status)
	s.router.GET("/summary", s.summary)
	s.router.GET("/history", s.history)
	s.router.GET("/forecast", s.forecast)
	s.router.GET("/series", s.series)
	s.router.GET("/branches", s.branches)
	s.router.POST("/refresh", s.refresh)

	invoices := s.router.Group("/invoices")
	{
		invoices.GET("", s.listInvoices)
		invoices.GET("/:number", s.getInvoice)
		invoices.GET("/:number/items", s.invoiceItems)
		invoices.POST("/:number/select", s.toggleSelection)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	const op = "Run"

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Read API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}
	s.log.Info().Msg("Read API stopped")
	return nil
}

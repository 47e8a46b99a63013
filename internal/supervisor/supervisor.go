// Package supervisor manages the push channel lifecycle: connect, detect
// disconnects, reconnect after a fixed delay and honor caller requested
// reconnects and teardown.
//
// Status transitions:
//
//	Disconnected -> Connecting      Start
//	Connecting   -> Connected       channel open
//	Connected    -> Reconnecting    unexpected close, retry scheduled
//	Reconnecting -> Connecting      retry fires, or immediately after a forced close
//	*            -> Disconnected    Stop
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"invoicewatch/internal/logger"
)

// DefaultReconnectDelay is the fixed backoff after an unexpected close.
const DefaultReconnectDelay = 4 * time.Second

// Status is the connection status shown to consumers.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Conn is an open push channel.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// DialFunc opens a push channel.
type DialFunc func(ctx context.Context) (Conn, error)

// FrameHandler receives frames in arrival order, one at a time.
type FrameHandler func(frame []byte)

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Config holds supervisor settings.
type Config struct {
	// ReconnectDelay is the wait after an unexpected close. Default: 4 seconds.
	ReconnectDelay time.Duration

	// AfterFunc schedules reconnect attempts. Default: time.AfterFunc.
	AfterFunc AfterFunc
}

// Supervisor owns one push channel at a time.
type Supervisor struct {
	dial    DialFunc
	onFrame FrameHandler
	delay   time.Duration
	after   AfterFunc
	log     zerolog.Logger

	mu     sync.Mutex
	status Status
	conn   Conn
	gen    uint64
	retry  func() bool

	shouldReconnect        bool
	intentionalClose       bool
	pendingManualReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped supervisor.
func New(dial DialFunc, onFrame FrameHandler, cfg Config) *Supervisor {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = timeAfterFunc
	}
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	return &Supervisor{
		dial:    dial,
		onFrame: onFrame,
		delay:   cfg.ReconnectDelay,
		after:   cfg.AfterFunc,
		log:     logger.WithComponent("supervisor"),
		status:  Disconnected,
	}
}

// Status returns the current connection status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start opens the push channel. Connections live until Stop or ctx is done.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.shouldReconnect = true
	s.connectLocked()
}

// ForceReconnect drops the current channel and connects again right away,
// skipping the backoff delay.
func (s *Supervisor) ForceReconnect() {
	s.mu.Lock()
	if !s.shouldReconnect {
		s.mu.Unlock()
		return
	}

	s.setStatusLocked(Reconnecting)
	s.stopRetryLocked()

	conn := s.conn
	if conn == nil {
		s.pendingManualReconnect = false
		s.intentionalClose = false
		s.connectLocked()
		s.mu.Unlock()
		return
	}
	s.pendingManualReconnect = true
	s.intentionalClose = true
	s.mu.Unlock()

	if err := conn.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close push channel for reconnect")

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn == conn {
			s.conn = nil
			s.pendingManualReconnect = false
			s.intentionalClose = false
			s.connectLocked()
		}
	}
}

// Stop tears the channel down and suppresses every further reconnect. It
// waits for the connection goroutines to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.shouldReconnect = false
	s.stopRetryLocked()
	s.pendingManualReconnect = false

	conn := s.conn
	if conn != nil {
		s.intentionalClose = true
	} else {
		s.setStatusLocked(Disconnected)
	}
	cancel := s.cancel
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("Closing push channel")
		}
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.conn = nil
	s.cancel = nil
	s.setStatusLocked(Disconnected)
	s.mu.Unlock()
}

func (s *Supervisor) connectLocked() {
	if !s.shouldReconnect {
		return
	}
	s.stopRetryLocked()
	s.setStatusLocked(Connecting)

	s.gen++
	gen := s.gen
	ctx := s.ctx

	s.wg.Add(1)
	go s.run(ctx, gen)
}

// run dials and then pumps frames until the channel closes.
func (s *Supervisor) run(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	conn, err := s.dial(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Push channel dial failed")
		s.handleClose(gen)
		return
	}
	if !s.handleOpen(gen, conn) {
		_ = conn.Close()
		return
	}

	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			s.log.Info().Err(err).Msg("Push channel closed")
			s.handleClose(gen)
			return
		}
		s.onFrame(frame)
	}
}

// handleOpen installs conn unless its dial was superseded.
func (s *Supervisor) handleOpen(gen uint64, conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.shouldReconnect {
		return false
	}
	s.conn = conn
	s.pendingManualReconnect = false
	s.intentionalClose = false
	s.setStatusLocked(Connected)
	return true
}

// handleClose decides what follows a closed channel or failed dial.
func (s *Supervisor) handleClose(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.conn = nil

	if s.intentionalClose {
		s.intentionalClose = false
		if s.pendingManualReconnect && s.shouldReconnect {
			s.pendingManualReconnect = false
			s.connectLocked()
		} else if !s.shouldReconnect {
			s.setStatusLocked(Disconnected)
		}
		return
	}

	if !s.shouldReconnect {
		s.setStatusLocked(Disconnected)
		return
	}

	s.setStatusLocked(Reconnecting)
	s.retry = s.after(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.retry = nil
		s.connectLocked()
	})
}

func (s *Supervisor) stopRetryLocked() {
	if s.retry != nil {
		s.retry()
		s.retry = nil
	}
}

func (s *Supervisor) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.log.Info().
		Stringer("from", s.status).
		Stringer("to", status).
		Msg("Connection status changed")
	s.status = status
}

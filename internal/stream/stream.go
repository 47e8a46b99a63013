// Package stream is the push channel transport: a websocket per branch where
// every text frame carries one raw invoice.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"invoicewatch/internal/logger"
)

// DefaultReadLimit caps the size of one frame.
const DefaultReadLimit int64 = 1 << 20

var (
	// ErrClosed is returned by Read once the peer closed the channel normally.
	ErrClosed = errors.New("push channel closed")

	// ErrInvalidURL is returned for URLs that cannot address a push channel.
	ErrInvalidURL = errors.New("invalid push channel URL")
)

// URLFor derives the push channel URL of branch from the API base URL:
// http becomes ws, https becomes wss, and the path is /ws/{branch}.
func URLFor(baseURL, branch string) (string, error) {
	const op = "URLFor"

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%s: %w: %q", op, ErrInvalidURL, baseURL)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%s: %w: unsupported scheme %q", op, ErrInvalidURL, u.Scheme)
	}

	branch = strings.TrimSpace(branch)
	if branch == "" {
		return "", fmt.Errorf("%s: %w: branch is required", op, ErrInvalidURL)
	}

	u = u.JoinPath("ws", url.PathEscape(branch))
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dialer opens push channel connections to one URL.
type Dialer struct {
	URL       string
	ReadLimit int64

	log zerolog.Logger
}

// NewDialer creates a Dialer for a ws:// or wss:// URL.
func NewDialer(rawURL string) *Dialer {
	return &Dialer{
		URL:       rawURL,
		ReadLimit: DefaultReadLimit,
		log:       logger.WithComponent("stream"),
	}
}

// Dial connects to the push channel.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("Dial: %s: %w", d.URL, err)
	}
	if d.ReadLimit > 0 {
		ws.SetReadLimit(d.ReadLimit)
	}

	d.log.Debug().Str("url", d.URL).Msg("Push channel connected")
	return &Conn{ws: ws, log: d.log}, nil
}

// Conn is one open push channel.
type Conn struct {
	ws  *websocket.Conn
	log zerolog.Logger
}

// Read blocks until the next text frame arrives. Binary frames are skipped.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil, ErrClosed
			}
			return nil, err
		}
		if typ != websocket.MessageText {
			c.log.Debug().Int("bytes", len(data)).Msg("Skipping binary frame")
			continue
		}
		return data, nil
	}
}

// Close closes the channel with a normal closure.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "closing")
}

package stream

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func TestURLFor(t *testing.T) {
	tests := []struct {
		base   string
		branch string
		want   string
	}{
		{"http://127.0.0.1:8000", "FLO", "ws://127.0.0.1:8000/ws/FLO"},
		{"https://pos.example.com/", "CED", "wss://pos.example.com/ws/CED"},
		{"https://pos.example.com/api?x=1", "CED", "wss://pos.example.com/api/ws/CED"},
		{"ws://localhost:9000", "FLO", "ws://localhost:9000/ws/FLO"},
		{"http://localhost", "SAN JOSE", "ws://localhost/ws/SAN%20JOSE"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := URLFor(tt.base, tt.branch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLForRejects(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "ftp://host"} {
		_, err := URLFor(base, "FLO")
		assert.ErrorIs(t, err, ErrInvalidURL, base)
	}

	_, err := URLFor("http://localhost", " ")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestDialReadsTextFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/FLO", r.URL.Path)

		c, err := websocket.Accept(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		ctx := r.Context()
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"invoice_number":"A1"}`))
		_ = c.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02})
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"invoice_number":"A2"}`))
		_ = c.Close(websocket.StatusNormalClosure, "done")
	}))
	defer srv.Close()

	target, err := URLFor(srv.URL, "FLO")
	require.NoError(t, err)

	conn, err := NewDialer(target).Dial(t.Context())
	require.NoError(t, err)
	defer conn.Close()

	first, err := conn.Read(t.Context())
	require.NoError(t, err)
	assert.JSONEq(t, `{"invoice_number":"A1"}`, string(first))

	second, err := conn.Read(t.Context())
	require.NoError(t, err)
	assert.JSONEq(t, `{"invoice_number":"A2"}`, string(second))

	_, err = conn.Read(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	target, err := URLFor(srv.URL, "FLO")
	require.NoError(t, err)

	_, err = NewDialer(target).Dial(t.Context())
	assert.Error(t, err)
}

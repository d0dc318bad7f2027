package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/logger"
	"fxengine/internal/model"
)

func TestMessage_Quote(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"ts":1710320400000,"bid":"1.10000","ask":1.1001}`), &m))
	q := m.Quote(now.Add(time.Hour))
	assert.Equal(t, time.UnixMilli(1710320400000).UTC(), q.TS)
	assert.True(t, q.Bid.Equal(decimal.RequireFromString("1.1")))
	assert.True(t, q.Ask.Equal(decimal.RequireFromString("1.1001")))

	var partial Message
	require.NoError(t, json.Unmarshal([]byte(`{"bid":"1.2"}`), &partial))
	q = partial.Quote(now)
	assert.Equal(t, now, q.TS)
	assert.True(t, q.Ask.IsZero())
}

func TestNew_RejectsScheme(t *testing.T) {
	_, err := New(Config{URL: "http://localhost:1"}, logger.Discard())
	assert.Error(t, err)
	_, err = New(Config{URL: "wss://prices.example/stream"}, logger.Discard())
	assert.NoError(t, err)
}

// quoteServer accepts websocket connections, records the handshake
// headers and writes frames, then closes the connection.
type quoteServer struct {
	frames []string
	conns  atomic.Int32
	apiKey atomic.Value
	totp   atomic.Value
}

func (s *quoteServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	n := s.conns.Add(1)
	s.apiKey.Store(r.Header.Get(HeaderAPIKey))
	s.totp.Store(r.Header.Get(HeaderTOTP))

	if n > 1 {
		// Hold the reconnect open until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	for _, f := range s.frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
}

func TestFeed_StreamsAndReconnects(t *testing.T) {
	srv := &quoteServer{frames: []string{
		`{"ts":1710320400000,"bid":"1.10000","ask":"1.10010"}`,
		`not json`,
		`{"ts":1710320401000,"bid":"1.10005","ask":"1.10015"}`,
	}}
	hs := httptest.NewServer(srv)
	defer hs.Close()

	f, err := New(Config{
		URL:            "ws" + strings.TrimPrefix(hs.URL, "http"),
		APIKey:         "key-1",
		TOTPSecret:     "JBSWY3DPEHPK3PXP",
		ReconnectEvery: 10 * time.Millisecond,
	}, logger.Discard())
	require.NoError(t, err)

	var connects, reconnects, bad atomic.Int32
	f.OnConnect = func() { connects.Add(1) }
	f.OnReconnect = func() { reconnects.Add(1) }
	f.OnBadFrame = func(error) { bad.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Quote, 8)
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, out) }()

	var got []model.Quote
	for len(got) < 2 {
		select {
		case q := <-out:
			got = append(got, q)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for quotes")
		}
	}
	assert.True(t, got[0].Bid.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, time.UnixMilli(1710320401000).UTC(), got[1].TS)

	require.Eventually(t, func() bool { return srv.conns.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, int32(1), bad.Load())
	assert.GreaterOrEqual(t, connects.Load(), int32(2))
	assert.GreaterOrEqual(t, reconnects.Load(), int32(1))
	assert.Equal(t, "key-1", srv.apiKey.Load())
	assert.Len(t, srv.totp.Load(), 6)
}

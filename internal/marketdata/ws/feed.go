// Package ws streams live bid/ask quotes from a websocket price server.
//
// Each text frame carries one quote:
//
//	{"ts":1710320400000,"bid":"1.10000","ask":"1.10010"}
//
// ts is epoch milliseconds; bid and ask may be JSON strings or numbers.
// A missing side decodes to zero and is ignored by the tick holder.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fxengine/internal/model"
)

const (
	HeaderAPIKey = "X-API-Key"
	HeaderTOTP   = "X-TOTP"
)

// Config holds the feed connection settings.
type Config struct {
	URL        string // ws:// or wss://
	APIKey     string
	TOTPSecret string // base32; empty disables the TOTP header

	ReconnectEvery time.Duration // minimum spacing between dial attempts (default 2s)
	PingInterval   time.Duration // keepalive ping period (default 15s)
}

func (c *Config) defaults() {
	if c.ReconnectEvery <= 0 {
		c.ReconnectEvery = 2 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
}

// Message is the wire format of one quote.
type Message struct {
	TS  int64           `json:"ts"`
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
}

// Quote converts the message. A zero ts is stamped with now.
func (m Message) Quote(now time.Time) model.Quote {
	ts := now.UTC()
	if m.TS > 0 {
		ts = time.UnixMilli(m.TS).UTC()
	}
	return model.Quote{TS: ts, Bid: m.Bid, Ask: m.Ask}
}

// Feed keeps one websocket connection open and forwards parsed quotes.
type Feed struct {
	cfg     Config
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	log     *slog.Logger

	// Optional hooks
	OnConnect   func()
	OnReconnect func()
	OnBadFrame  func(err error)
}

// New validates cfg and creates a Feed.
func New(cfg Config, log *slog.Logger) (*Feed, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ws: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("ws: unsupported scheme %q", u.Scheme)
	}
	return &Feed{
		cfg:     cfg,
		dialer:  websocket.DefaultDialer,
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectEvery), 1),
		log:     log.With("component", "ws", "url", u.Redacted()),
	}, nil
}

// Run dials, reads quotes into out and reconnects on disconnect.
// It blocks until ctx is cancelled and then returns nil.
func (f *Feed) Run(ctx context.Context, out chan<- model.Quote) error {
	connected := false
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil
		}
		if connected && f.OnReconnect != nil {
			f.OnReconnect()
		}

		err := f.runOnce(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		connected = true
		f.log.Warn("disconnected, reconnecting", "error", err)
	}
}

func (f *Feed) header() (http.Header, error) {
	h := http.Header{}
	if f.cfg.APIKey != "" {
		h.Set(HeaderAPIKey, f.cfg.APIKey)
	}
	if f.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(f.cfg.TOTPSecret, time.Now())
		if err != nil {
			return nil, fmt.Errorf("ws: totp: %w", err)
		}
		h.Set(HeaderTOTP, code)
	}
	return h, nil
}

// runOnce makes a single connection and reads until disconnect or ctx cancel.
func (f *Feed) runOnce(ctx context.Context, out chan<- model.Quote) error {
	h, err := f.header()
	if err != nil {
		return err
	}
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, h)
	if err != nil {
		return fmt.Errorf("ws: dial: %w", err)
	}
	defer conn.Close()

	f.log.Info("connected")
	if f.OnConnect != nil {
		f.OnConnect()
	}

	readTimeout := 3 * f.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(f.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
					time.Now().Add(time.Second))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.badFrame(fmt.Errorf("ws: decode %q: %w", raw, err))
			continue
		}

		select {
		case out <- msg.Quote(time.Now()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) badFrame(err error) {
	f.log.Warn("bad frame", "error", err)
	if f.OnBadFrame != nil {
		f.OnBadFrame(err)
	}
}


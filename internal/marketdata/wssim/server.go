// Package wssim is a demo quote server speaking the ws feed's wire format.
// It random-walks a bid price, quotes the ask a fixed spread above it and
// broadcasts each quote to every connected client. Useful for running the
// engine end to end without broker credentials.
package wssim

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"fxengine/internal/marketdata/ws"
	"fxengine/internal/model"
)

// Config controls the simulated market.
type Config struct {
	Start    decimal.Decimal // first bid
	Digits   int32
	Spread   int           // points between bid and ask
	Step     int           // max random walk per quote, in points
	Interval time.Duration // time between quotes
	APIKey   string        // required X-API-Key when set
}

func (c *Config) defaults() {
	if c.Start.IsZero() {
		c.Start = decimal.RequireFromString("1.10000")
	}
	if c.Digits == 0 {
		c.Digits = 5
	}
	if c.Spread <= 0 {
		c.Spread = 10
	}
	if c.Step <= 0 {
		c.Step = 5
	}
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
}

// Server owns the client hub and the price walk.
type Server struct {
	cfg Config
	log *slog.Logger
	rng *rand.Rand

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	bid     decimal.Decimal
}

// New creates a Server.
func New(cfg Config, log *slog.Logger) *Server {
	cfg.defaults()
	return &Server{
		cfg:     cfg,
		log:     log.With("component", "wssim"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		clients: make(map[*websocket.Conn]chan []byte),
		bid:     cfg.Start,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and streams quotes until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get(ws.HeaderAPIKey) != s.cfg.APIKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}
	s.log.Info("client connected", "remote", r.RemoteAddr)

	ch := s.register(conn)
	defer func() {
		s.unregister(conn)
		conn.Close()
		s.log.Info("client disconnected", "remote", r.RemoteAddr)
	}()

	// Reader: answers pings and notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	return ch
}

func (s *Server) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	if ch, ok := s.clients[conn]; ok {
		close(ch)
		delete(s.clients, conn)
	}
	s.mu.Unlock()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default: // slow client, drop the quote
		}
	}
}

// Next advances the walk and returns the new quote message.
func (s *Server) Next(now time.Time) ws.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.rng.Intn(2*s.cfg.Step+1) - s.cfg.Step
	bid := s.bid.Add(model.PointsToPrice(step, s.cfg.Digits))
	if bid.Sign() <= 0 {
		bid = s.bid
	}
	s.bid = bid
	return ws.Message{
		TS:  now.UnixMilli(),
		Bid: bid,
		Ask: bid.Add(model.PointsToPrice(s.cfg.Spread, s.cfg.Digits)),
	}
}

// Run broadcasts a quote every interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b, err := json.Marshal(s.Next(now))
			if err != nil {
				continue
			}
			s.broadcast(b)
		}
	}
}

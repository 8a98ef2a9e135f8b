package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

const (
	heartbeatInterval = 10 * time.Second
	readDeadline      = 30 * time.Second
	maxReconnectWait  = time.Minute
)

// Stream consumes the vendor tick websocket. Reconnects with exponential
// backoff and resubscribes its symbol set after every reconnect.
type Stream struct {
	url       string
	apiKey    string
	feedToken string

	mu      sync.Mutex
	symbols []string
	conn    *websocket.Conn

	// OnTick receives every parsed tick. Called from the read loop, so it
	// must not block; push into a ring buffer.
	OnTick func(model.Tick)
}

// NewStream creates a stream for the given symbols. feedToken comes from
// Client.FeedToken after login.
func NewStream(url, apiKey, feedToken string, symbols []string) (*Stream, error) {
	if url == "" || feedToken == "" {
		return nil, fmt.Errorf("marketfeed stream: missing url or feed token")
	}
	return &Stream{
		url:       url,
		apiKey:    apiKey,
		feedToken: feedToken,
		symbols:   append([]string(nil), symbols...),
	}, nil
}

// Subscribe adds symbols to the live subscription set.
func (s *Stream) Subscribe(symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append(s.symbols, symbols...)
	if s.conn == nil {
		return nil
	}
	return s.sendSubscribe(s.conn, symbols)
}

// Run connects and consumes ticks until ctx is cancelled. Connection
// drops are retried with doubling delays up to a minute.
func (s *Stream) Run(ctx context.Context) error {
	wait := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[marketfeed] stream dropped: %v, reconnecting in %v", err, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-API-Key", s.apiKey)
	header.Set("Authorization", "Bearer "+s.feedToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if err := s.sendSubscribe(conn, symbols); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[marketfeed] stream connected, %d symbols", len(symbols))

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Heartbeat keeps the vendor side from idling us out.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				c := s.conn
				s.mu.Unlock()
				if c == nil {
					return
				}
				c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg wireTick
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[marketfeed] bad tick payload: %v", err)
			continue
		}
		if msg.Symbol == "" {
			continue // control frame
		}
		if s.OnTick != nil {
			s.OnTick(model.Tick{
				Symbol: msg.Symbol,
				Price:  msg.Price,
				TS:     time.UnixMilli(msg.TS).UTC(),
			})
		}
	}
}

type wireTick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"ltp"`
	TS     int64   `json:"ts"`
}

func (s *Stream) sendSubscribe(conn *websocket.Conn, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	return conn.WriteJSON(map[string]interface{}{
		"action":  "subscribe",
		"symbols": symbols,
	})
}

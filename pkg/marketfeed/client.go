// Package marketfeed is a slim client for the vendor market data API:
// TOTP session login, historical candles and last-traded-price quotes over
// REST, and a streaming tick feed over websocket.
package marketfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

const defaultTimeout = 7 * time.Second

// Config holds vendor API credentials and endpoints.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	StreamURL  string        `yaml:"stream_url"`
	APIKey     string        `yaml:"api_key"`
	ClientCode string        `yaml:"client_code"`
	Password   string        `yaml:"password"`
	TOTPSecret string        `yaml:"totp_secret"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Client is the REST side of the feed. Safe for concurrent use; the
// session token is refreshed under a lock when the vendor expires it.
type Client struct {
	cfg  Config
	http *http.Client

	mu          sync.RWMutex
	accessToken string
	feedToken   string
}

// NewClient creates a client. Login is lazy: the first authenticated call
// establishes the session.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// FeedToken returns the websocket feed token from the current session.
func (c *Client) FeedToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedToken
}

type loginResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"message"`
	Data   struct {
		AccessToken string `json:"access_token"`
		FeedToken   string `json:"feed_token"`
	} `json:"data"`
}

// Login generates a fresh TOTP code and opens a session. Called
// automatically on the first request and after a 401.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("marketfeed totp: %w", err)
	}

	body, _ := json.Marshal(map[string]string{
		"client_code": c.cfg.ClientCode,
		"password":    c.cfg.Password,
		"totp":        code,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("marketfeed login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("marketfeed login: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("marketfeed login read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marketfeed login: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return fmt.Errorf("marketfeed login decode: %w", err)
	}
	if !lr.Status || lr.Data.AccessToken == "" {
		return fmt.Errorf("marketfeed login rejected: %s", lr.Error)
	}

	c.mu.Lock()
	c.accessToken = lr.Data.AccessToken
	c.feedToken = lr.Data.FeedToken
	c.mu.Unlock()

	log.Printf("[marketfeed] session established for %s", c.cfg.ClientCode)
	return nil
}

// get performs an authenticated GET, logging in on demand and retrying
// once after a 401.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		c.mu.RLock()
		token := c.accessToken
		c.mu.RUnlock()

		if token == "" {
			if err := c.Login(ctx); err != nil {
				return err
			}
			c.mu.RLock()
			token = c.accessToken
			c.mu.RUnlock()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return fmt.Errorf("marketfeed request %s: %w", path, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-Key", c.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("marketfeed get %s: %w", path, err)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("marketfeed read %s: %w", path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			// Session expired, force a fresh login on the retry.
			c.mu.Lock()
			c.accessToken = ""
			c.mu.Unlock()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("marketfeed get %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(raw))
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("marketfeed decode %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("marketfeed get %s: session expired twice", path)
}

type candlesResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"message"`
	Data   struct {
		Candles [][]float64 `json:"candles"` // [ts, open, high, low, close, volume]
	} `json:"data"`
}

// Candles fetches the most recent limit candles, oldest first. Satisfies
// feed.CandleSource.
func (c *Client) Candles(ctx context.Context, symbol string, tf model.Timeframe, limit int) (*model.Series, error) {
	path := fmt.Sprintf("/market/candles?symbol=%s&interval=%s&limit=%d", symbol, tf, limit)
	var cr candlesResponse
	if err := c.get(ctx, path, &cr); err != nil {
		return nil, err
	}
	if !cr.Status {
		return nil, fmt.Errorf("marketfeed candles %s/%s: %s", symbol, tf, cr.Error)
	}

	candles := make([]model.Candle, 0, len(cr.Data.Candles))
	for i, row := range cr.Data.Candles {
		if len(row) < 6 {
			return nil, fmt.Errorf("marketfeed candles %s/%s row %d: %w", symbol, tf, i, model.ErrBadCandle)
		}
		candles = append(candles, model.Candle{
			TS:     time.Unix(int64(row[0]), 0).UTC(),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}

	series := &model.Series{Symbol: symbol, Timeframe: tf, Candles: candles}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

type quoteResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"message"`
	Data   struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
		TS     int64   `json:"ts"`
	} `json:"data"`
}

// LastPrice fetches the latest traded price. Satisfies feed.PriceSource.
func (c *Client) LastPrice(ctx context.Context, symbol string) (model.Tick, error) {
	var qr quoteResponse
	if err := c.get(ctx, "/market/quote?symbol="+symbol, &qr); err != nil {
		return model.Tick{}, err
	}
	if !qr.Status {
		return model.Tick{}, fmt.Errorf("marketfeed quote %s: %s", symbol, qr.Error)
	}
	return model.Tick{
		Symbol: qr.Data.Symbol,
		Price:  qr.Data.Price,
		TS:     time.Unix(qr.Data.TS, 0).UTC(),
	}, nil
}

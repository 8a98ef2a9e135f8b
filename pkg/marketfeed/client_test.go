package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

const testSecret = "JBSWY3DPEHPK3PXP"

type fakeAPI struct {
	srv    *httptest.Server
	logins atomic.Int64
	expire atomic.Bool // force the next authenticated request to 401
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var body struct {
			ClientCode string `json:"client_code"`
			Password   string `json:"password"`
			TOTP       string `json:"totp"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ClientCode != "C123" || body.Password != "pw" || body.TOTP == "" {
			fmt.Fprint(w, `{"status":false,"message":"invalid credentials"}`)
			return
		}
		fmt.Fprint(w, `{"status":true,"data":{"access_token":"at-1","feed_token":"ft-1"}}`)
	})
	auth := func(w http.ResponseWriter, r *http.Request) bool {
		if f.expire.Swap(false) {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return false
		}
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("/market/candles", func(w http.ResponseWriter, r *http.Request) {
		if !auth(w, r) {
			return
		}
		fmt.Fprint(w, `{"status":true,"data":{"candles":[
			[1700000400,100,101,99,100.5,1500],
			[1700000460,100.5,102,100,101.5,1800]
		]}}`)
	})
	mux.HandleFunc("/market/quote", func(w http.ResponseWriter, r *http.Request) {
		if !auth(w, r) {
			return
		}
		fmt.Fprintf(w, `{"status":true,"data":{"symbol":%q,"price":101.25,"ts":1700000500}}`,
			r.URL.Query().Get("symbol"))
	})
	f.srv = httptest.NewServer(mux)
	return f
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:    url,
		APIKey:     "key",
		ClientCode: "C123",
		Password:   "pw",
		TOTPSecret: testSecret,
	})
}

func TestCandlesLogsInOnDemand(t *testing.T) {
	api := newFakeAPI()
	defer api.srv.Close()
	c := newTestClient(api.srv.URL)

	s, err := c.Candles(context.Background(), "BTCUSDT", model.TF1m, 200)
	require.NoError(t, err)

	assert.Equal(t, int64(1), api.logins.Load())
	assert.Equal(t, "ft-1", c.FeedToken())
	require.Len(t, s.Candles, 2)
	assert.Equal(t, time.Unix(1700000400, 0).UTC(), s.Candles[0].TS)
	assert.Equal(t, 101.5, s.Candles[1].Close)
	assert.Equal(t, model.TF1m, s.Timeframe)
}

func TestSessionReusedAcrossRequests(t *testing.T) {
	api := newFakeAPI()
	defer api.srv.Close()
	c := newTestClient(api.srv.URL)

	_, err := c.Candles(context.Background(), "BTCUSDT", model.TF1m, 200)
	require.NoError(t, err)
	_, err = c.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, int64(1), api.logins.Load(), "second request rides the existing session")
}

func TestExpiredSessionRetriesWithFreshLogin(t *testing.T) {
	api := newFakeAPI()
	defer api.srv.Close()
	c := newTestClient(api.srv.URL)

	_, err := c.Candles(context.Background(), "BTCUSDT", model.TF1m, 200)
	require.NoError(t, err)

	api.expire.Store(true)
	tick, err := c.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, int64(2), api.logins.Load(), "401 forces one relogin")
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, 101.25, tick.Price)
	assert.Equal(t, time.Unix(1700000500, 0).UTC(), tick.TS)
}

func TestLoginRejectedSurfacesMessage(t *testing.T) {
	api := newFakeAPI()
	defer api.srv.Close()

	c := NewClient(Config{
		BaseURL:    api.srv.URL,
		APIKey:     "key",
		ClientCode: "WRONG",
		Password:   "pw",
		TOTPSecret: testSecret,
	})
	err := c.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestBadTOTPSecretFailsFast(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", TOTPSecret: "not base32!"})
	err := c.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totp")
}

func TestCandlesRejectsShortRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/session" {
			fmt.Fprint(w, `{"status":true,"data":{"access_token":"at-1","feed_token":"ft-1"}}`)
			return
		}
		fmt.Fprint(w, `{"status":true,"data":{"candles":[[1700000400,100]]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Candles(context.Background(), "BTCUSDT", model.TF1m, 10)
	require.ErrorIs(t, err, model.ErrBadCandle)
}

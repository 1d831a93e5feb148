package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/config"
)

const coinsBody = `{
  "status": "success",
  "data": {
    "stats": {"total": 3, "totalCoins": 12000, "totalMarkets": 40000, "totalExchanges": 180,
              "totalMarketCap": "2500000000000", "total24hVolume": "90000000000"},
    "coins": [
      {"uuid": "Qwsogvtv82FCd", "rank": 1, "name": "Bitcoin", "symbol": "BTC", "price": "65000.12",
       "change": "2.5", "marketCap": "1300000000000", "24hVolume": "30000000000", "iconUrl": "https://x/btc.svg"},
      {"uuid": "razxDUgYGNAdQ", "rank": "2", "name": "Ethereum", "symbol": "ETH", "price": 3200.5,
       "change": "-1.1", "marketCap": "400000000000", "24hVolume": null},
      {"uuid": "", "rank": 3, "name": "Broken", "symbol": "BRK", "price": "1", "change": "0",
       "marketCap": "1", "24hVolume": "1"}
    ]
  }
}`

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.Market.BaseURL = baseURL
	cfg.Market.APIKey = "secret"
	cfg.RequestTimeout = 2 * time.Second
	cfg.CircuitFailLimit = 3
	cfg.CircuitCooldown = time.Minute
	return cfg
}

func TestMarketClientCoins(t *testing.T) {
	var gotToken, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("x-access-token")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/coins", r.URL.Path)
		_, _ = w.Write([]byte(coinsBody))
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	res, err := c.Coins(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotToken)
	assert.Contains(t, gotQuery, "limit=50")
	assert.Contains(t, gotQuery, "orderBy=marketCap")

	require.Len(t, res.Coins, 2)
	assert.Equal(t, "Qwsogvtv82FCd", res.Coins[0].ID)
	assert.InDelta(t, 65000.12, res.Coins[0].PriceUSD, 1e-9)
	assert.Equal(t, 2, res.Coins[1].Rank)
	assert.Equal(t, "3200.5", res.Coins[1].Price)
	assert.True(t, math.IsNaN(res.Coins[1].Volume24hUSD))
	assert.Equal(t, 12000, res.Stats.TotalCoins)
	assert.Equal(t, "2500000000000", res.Stats.TotalMarketCap)
	assert.True(t, c.Healthy())
}

func TestMarketClientNon2xxIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	_, err := c.Coins(context.Background(), 10)
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Equal(t, upstreamMarket, ue.Upstream)
}

func TestMarketClientMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	_, err := c.Coins(context.Background(), 10)
	assert.Error(t, err)
}

func TestMarketClientCircuitOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := c.Coins(context.Background(), 10)
		require.Error(t, err)
	}
	_, err := c.Coins(context.Background(), 10)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(3), hits.Load())
	assert.False(t, c.Healthy())
}

func TestMarketClientCircuitHalfOpenAdmitsOneTrial(t *testing.T) {
	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(coinsBody))
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c.cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := c.Coins(context.Background(), 10)
		require.Error(t, err)
	}
	require.True(t, c.cb.open())

	now = now.Add(2 * time.Minute)
	allowed := 0
	for i := 0; i < 5; i++ {
		if c.cb.allow() {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)

	// the trial fails: open again for a full cooldown
	c.cb.fail()
	assert.False(t, c.cb.allow())
	_, err := c.Coins(context.Background(), 10)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(3), hits.Load())

	now = now.Add(2 * time.Minute)
	healthy.Store(true)
	_, err = c.Coins(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int32(4), hits.Load())
	assert.True(t, c.Healthy())
	assert.True(t, c.cb.allow())
	assert.True(t, c.cb.allow())
}

func TestCircuitBreakerReleaseReopensTrialSlot(t *testing.T) {
	cb := newCircuitBreaker(1, time.Minute)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }

	cb.fail()
	require.False(t, cb.allow())
	now = now.Add(time.Minute)
	require.True(t, cb.allow())
	require.False(t, cb.allow())

	cb.release()
	assert.True(t, cb.allow())
}

func TestMarketClientHistoryCachesAndSkipsNulls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/coin/Qwsogvtv82FCd/history", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("timePeriod"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"history":[
			{"price":"65010.5","timestamp":1700003600},
			{"price":null,"timestamp":1700001800},
			{"price":"64990","timestamp":1700000000}]}}`))
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	ctx := context.Background()

	series, err := c.History(ctx, "Qwsogvtv82FCd", "1h")
	require.NoError(t, err)
	require.Len(t, series.Points, 2)
	assert.Equal(t, int64(1700003600), series.Points[0].Timestamp)
	assert.InDelta(t, 65010.5, series.Points[0].PriceUSD, 1e-9)

	again, err := c.History(ctx, "Qwsogvtv82FCd", "1h")
	require.NoError(t, err)
	assert.Equal(t, series, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestMarketClientHistoryFallsBackToLastGood(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"history":[{"price":"1.5","timestamp":1}]}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CacheTTLHistory = time.Millisecond
	c := NewMarketClient(cfg, NewMemoryCache(), zap.NewNop())
	ctx := context.Background()

	_, err := c.History(ctx, "btc", "1h")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	fail.Store(true)
	series, err := c.History(ctx, "btc", "1h")
	assert.Error(t, err)
	require.Len(t, series.Points, 1)
	assert.InDelta(t, 1.5, series.Points[0].PriceUSD, 1e-9)
}

func TestMarketClientHistoryEmptyWithoutLastGood(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewMarketClient(testConfig(srv.URL), NewMemoryCache(), zap.NewNop())
	series, err := c.History(context.Background(), "btc", "24h")
	assert.Error(t, err)
	assert.NotNil(t, series.Points)
	assert.Empty(t, series.Points)
	assert.Equal(t, "24h", series.TimePeriod)
}

func TestRawDecimal(t *testing.T) {
	assert.Equal(t, "1.25", rawDecimal([]byte(`"1.25"`)))
	assert.Equal(t, "1.25", rawDecimal([]byte(`1.25`)))
	assert.Equal(t, "", rawDecimal([]byte(`null`)))
	assert.Equal(t, "", rawDecimal(nil))
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/telemetry"
)

const upstreamMarket = "coinranking"

type CoinsResult struct {
	Coins []models.AssetRecord
	Stats models.GlobalStats
}

// MarketSource is what the snapshot service needs from the market API.
type MarketSource interface {
	Coins(ctx context.Context, limit int) (CoinsResult, error)
	History(ctx context.Context, assetID, period string) (models.HistorySeries, error)
}

type MarketClient struct {
	hc         *http.Client
	log        *zap.Logger
	cache      Cache
	baseURL    string
	apiKey     string
	historyTTL time.Duration
	cb         *circuitBreaker
}

func NewMarketClient(cfg config.Config, cache Cache, log *zap.Logger) *MarketClient {
	return &MarketClient{
		hc: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		log:        log,
		cache:      cache,
		baseURL:    strings.TrimRight(cfg.Market.BaseURL, "/"),
		apiKey:     cfg.Market.APIKey,
		historyTTL: cfg.CacheTTLHistory,
		cb:         newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
	}
}

type coinsPayload struct {
	Status string `json:"status"`
	Data   struct {
		Stats models.GlobalStats `json:"stats"`
		Coins []coinPayload      `json:"coins"`
	} `json:"data"`
}

// coinPayload tolerates rank and decimals arriving as either strings or
// numbers.
type coinPayload struct {
	UUID      string          `json:"uuid"`
	Rank      json.Number     `json:"rank"`
	Name      string          `json:"name"`
	Symbol    string          `json:"symbol"`
	Price     json.RawMessage `json:"price"`
	Change    json.RawMessage `json:"change"`
	MarketCap json.RawMessage `json:"marketCap"`
	Volume24h json.RawMessage `json:"24hVolume"`
	IconURL   string          `json:"iconUrl"`
}

type historyPayload struct {
	Status string `json:"status"`
	Data   struct {
		History []struct {
			Price     *string `json:"price"`
			Timestamp int64   `json:"timestamp"`
		} `json:"history"`
	} `json:"data"`
}

func (c *MarketClient) Coins(ctx context.Context, limit int) (CoinsResult, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("orderBy", "marketCap")
	q.Set("orderDirection", "desc")
	q.Set("offset", "0")

	var payload coinsPayload
	if err := c.getJSON(ctx, "/coins", q, &payload); err != nil {
		return CoinsResult{}, err
	}

	out := CoinsResult{Stats: payload.Data.Stats, Coins: make([]models.AssetRecord, 0, len(payload.Data.Coins))}
	nanCount := 0
	for _, raw := range payload.Data.Coins {
		rank, _ := strconv.Atoi(raw.Rank.String())
		rec, err := models.ParseAsset(models.AssetRecord{
			ID:        raw.UUID,
			Rank:      rank,
			Name:      raw.Name,
			Symbol:    raw.Symbol,
			Price:     rawDecimal(raw.Price),
			Change:    rawDecimal(raw.Change),
			MarketCap: rawDecimal(raw.MarketCap),
			Volume24h: rawDecimal(raw.Volume24h),
			IconURL:   raw.IconURL,
		})
		if err != nil {
			c.log.Warn("dropping asset", zap.Error(err))
			continue
		}
		if rec.HasNaN() {
			nanCount++
		}
		out.Coins = append(out.Coins, rec)
	}
	if nanCount > 0 {
		c.log.Info("assets with unparseable decimals", zap.Int("count", nanCount))
	}
	return out, nil
}

// History serves from cache, then upstream, then the last good series.
func (c *MarketClient) History(ctx context.Context, assetID, period string) (models.HistorySeries, error) {
	key := fmt.Sprintf("history:v1:%s:%s", assetID, period)
	lastGoodKey := fmt.Sprintf("history:v1:lastgood:%s:%s", assetID, period)

	var cached models.HistorySeries
	if getCached(ctx, c.cache, key, &cached) {
		return cached, nil
	}

	q := url.Values{}
	q.Set("timePeriod", period)
	var payload historyPayload
	err := c.getJSON(ctx, "/coin/"+url.PathEscape(assetID)+"/history", q, &payload)
	if err != nil {
		var lastGood models.HistorySeries
		if getCached(ctx, c.cache, lastGoodKey, &lastGood) {
			return lastGood, err
		}
		return models.HistorySeries{AssetID: assetID, TimePeriod: period, Points: []models.HistoryPoint{}}, err
	}

	series := models.HistorySeries{AssetID: assetID, TimePeriod: period, Points: make([]models.HistoryPoint, 0, len(payload.Data.History))}
	for _, h := range payload.Data.History {
		if h.Price == nil {
			continue
		}
		price := models.ParseDecimal(*h.Price)
		if math.IsNaN(price) {
			continue
		}
		series.Points = append(series.Points, models.HistoryPoint{Timestamp: h.Timestamp, PriceUSD: price})
	}

	setCached(ctx, c.cache, key, series, c.historyTTL)
	setCached(ctx, c.cache, lastGoodKey, series, time.Hour)
	return series, nil
}

func (c *MarketClient) Healthy() bool {
	return !c.cb.open()
}

func (c *MarketClient) getJSON(ctx context.Context, path string, q url.Values, out any) (err error) {
	if !c.cb.allow() {
		return fmt.Errorf("%s: %w", upstreamMarket, errCircuitOpen)
	}
	start := time.Now()
	defer func() {
		telemetry.ObserveUpstream(upstreamMarket, start, err)
		switch {
		case err == nil:
			c.cb.success()
		case errors.Is(err, context.Canceled):
			c.cb.release()
		default:
			c.cb.fail()
		}
	}()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-access-token", c.apiKey)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", upstreamMarket, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &UpstreamError{Upstream: upstreamMarket, Status: res.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", upstreamMarket, err)
	}
	return nil
}

func rawDecimal(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

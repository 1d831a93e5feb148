package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/telemetry"
)

const (
	upstreamInsight = "groq"
	maxInsightCoins = 10
	maxInsightItems = 3
)

var (
	errNoAPIKey     = errors.New("insight api key not configured")
	errEmptyContent = errors.New("insight reply had no content")
	errNoJSON       = errors.New("insight reply had no json object")
)

// FallbackInsight is served whenever the insight source fails.
func FallbackInsight() models.MarketInsight {
	return models.MarketInsight{
		Summary:       "Market analysis temporarily unavailable. Please try refreshing the data.",
		TopPerformers: []string{"Bitcoin", "Ethereum", "BNB"},
		MarketTrend:   models.TrendNeutral,
		Recommendations: []string{
			"Monitor market volatility for campaign timing",
			"Focus on stable cryptocurrencies for partnerships",
			"Track social sentiment for content strategy",
		},
		RiskLevel: models.RiskMedium,
	}
}

type InsightResult struct {
	Insight  models.MarketInsight
	Fallback bool
	Cached   bool
}

type InsightClient struct {
	hc          *http.Client
	log         *zap.Logger
	cache       Cache
	ttl         time.Duration
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	group       singleflight.Group
}

func NewInsightClient(cfg config.Config, cache Cache, log *zap.Logger) *InsightClient {
	return &InsightClient{
		hc: &http.Client{
			Timeout: cfg.Insight.Timeout,
		},
		log:         log,
		cache:       cache,
		ttl:         cfg.CacheTTLInsight,
		baseURL:     strings.TrimRight(cfg.Insight.BaseURL, "/"),
		apiKey:      cfg.Insight.APIKey,
		model:       cfg.Insight.Model,
		temperature: cfg.Insight.Temperature,
		maxTokens:   cfg.Insight.MaxTokens,
	}
}

func (c *InsightClient) Enabled() bool {
	return c.apiKey != ""
}

// Generate never fails: any error is logged and replaced by FallbackInsight.
func (c *InsightClient) Generate(ctx context.Context, coins []models.AssetRecord) InsightResult {
	input := InsightInputs(coins)
	key := insightCacheKey(input)

	var cached models.MarketInsight
	if getCached(ctx, c.cache, key, &cached) {
		return InsightResult{Insight: cached, Cached: true}
	}

	// Shared by every caller with the same input, so it outlives the first
	// caller's request.
	v, err, _ := c.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.hc.Timeout)
		defer cancel()
		insight, err := c.complete(callCtx, input)
		if err != nil {
			return nil, err
		}
		setCached(callCtx, c.cache, key, insight, c.ttl)
		return insight, nil
	})
	if err != nil {
		c.log.Warn("insight generation failed, serving fallback", zap.Error(err))
		telemetry.InsightFallbacks.Inc()
		return InsightResult{Insight: FallbackInsight(), Fallback: true}
	}
	return InsightResult{Insight: v.(models.MarketInsight)}
}

// InsightInputs takes up to ten records by ascending rank.
func InsightInputs(coins []models.AssetRecord) []models.InsightInput {
	sorted := slices.Clone(coins)
	slices.SortStableFunc(sorted, func(a, b models.AssetRecord) int { return a.Rank - b.Rank })
	if len(sorted) > maxInsightCoins {
		sorted = sorted[:maxInsightCoins]
	}
	out := make([]models.InsightInput, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, models.InsightInput{
			Name:      c.Name,
			Symbol:    c.Symbol,
			Price:     c.Price,
			Change:    c.Change,
			MarketCap: c.MarketCap,
			Rank:      c.Rank,
		})
	}
	return out
}

func insightCacheKey(input []models.InsightInput) string {
	b, _ := json.Marshal(input)
	sum := sha1.Sum(b)
	return "insight:v1:" + hex.EncodeToString(sum[:8])
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *InsightClient) complete(ctx context.Context, input []models.InsightInput) (insight models.MarketInsight, err error) {
	if c.apiKey == "" {
		return insight, errNoAPIKey
	}
	start := time.Now()
	defer func() { telemetry.ObserveUpstream(upstreamInsight, start, err) }()

	prompt, err := BuildInsightPrompt(input)
	if err != nil {
		return insight, err
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return insight, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return insight, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return insight, fmt.Errorf("%s request: %w", upstreamInsight, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return insight, &UpstreamError{Upstream: upstreamInsight, Status: res.StatusCode, Body: string(b)}
	}

	var chat chatResponse
	if err := json.NewDecoder(res.Body).Decode(&chat); err != nil {
		return insight, fmt.Errorf("%s decode: %w", upstreamInsight, err)
	}
	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		return insight, errEmptyContent
	}
	return ParseInsight(chat.Choices[0].Message.Content)
}

func BuildInsightPrompt(input []models.InsightInput) (string, error) {
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", err
	}
	return `You are an expert market analyst. Analyze the following cryptocurrency market data and return ONLY valid JSON (no extra text, explanations, or markdown):

` + string(data) + `

Your JSON must strictly follow this structure:
{
  "summary": "2-3 sentence summary",
  "topPerformers": ["Coin1", "Coin2", "Coin3"],
  "marketTrend": "bullish" | "bearish" | "neutral",
  "recommendations": ["Rec1", "Rec2", "Rec3"],
  "riskLevel": "low" | "medium" | "high"
}`, nil
}

// ParseInsight extracts and validates the insight object from a model reply.
func ParseInsight(text string) (models.MarketInsight, error) {
	var insight models.MarketInsight
	raw := ExtractJSON(text)
	if raw == "" {
		return insight, errNoJSON
	}
	if err := json.Unmarshal([]byte(raw), &insight); err != nil {
		return insight, fmt.Errorf("parse insight: %w", err)
	}

	insight.Summary = strings.TrimSpace(insight.Summary)
	if insight.Summary == "" {
		return insight, errors.New("insight summary empty")
	}
	insight.MarketTrend = models.MarketTrend(strings.ToLower(strings.TrimSpace(string(insight.MarketTrend))))
	switch insight.MarketTrend {
	case models.TrendBullish, models.TrendBearish, models.TrendNeutral:
	default:
		return insight, fmt.Errorf("invalid market trend %q", insight.MarketTrend)
	}
	insight.RiskLevel = models.RiskLevel(strings.ToLower(strings.TrimSpace(string(insight.RiskLevel))))
	switch insight.RiskLevel {
	case models.RiskLow, models.RiskMedium, models.RiskHigh:
	default:
		return insight, fmt.Errorf("invalid risk level %q", insight.RiskLevel)
	}
	insight.TopPerformers = capList(insight.TopPerformers)
	insight.Recommendations = capList(insight.Recommendations)
	return insight, nil
}

func capList(items []string) []string {
	out := make([]string, 0, maxInsightItems)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == maxInsightItems {
			break
		}
	}
	return out
}

// ExtractJSON finds the JSON object in a model reply: a ```json fence, any
// fence holding an object, or the first balanced {...} in the text.
func ExtractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		start := idx + len("```")
		if end := strings.Index(text[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(text[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for j := start; j < len(text); j++ {
		ch := text[j]
		if escape {
			escape = false
			continue
		}
		if ch == '\\' && inString {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : j+1]
			}
		}
	}
	return ""
}

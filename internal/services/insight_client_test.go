package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/telemetry"
)

func insightConfig(baseURL, key string) config.Config {
	cfg := config.Default()
	cfg.Insight.BaseURL = baseURL
	cfg.Insight.APIKey = key
	return cfg
}

func coinsFixture(n int) []models.AssetRecord {
	out := make([]models.AssetRecord, 0, n)
	for i := n; i >= 1; i-- {
		a, _ := models.ParseAsset(models.AssetRecord{
			ID:        fmt.Sprintf("id-%d", i),
			Rank:      i,
			Name:      fmt.Sprintf("Coin %d", i),
			Symbol:    fmt.Sprintf("C%d", i),
			Price:     "1.5",
			Change:    "0.3",
			MarketCap: "1000",
		})
		out = append(out, a)
	}
	return out
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"fenced json", "here:\n```json\n{\"a\":1}\n```\nbye", `{"a":1}`},
		{"plain fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"bare object", `Sure! {"a":{"b":"}"}} trailing`, `{"a":{"b":"}"}}`},
		{"escaped quote", `{"a":"x\"}"}`, `{"a":"x\"}"}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestParseInsightNormalizes(t *testing.T) {
	got, err := ParseInsight(`{"summary":" Up only. ","topPerformers":["BTC","ETH","SOL","XRP"],
		"marketTrend":"Bullish","recommendations":["a","","b"],"riskLevel":"HIGH"}`)
	require.NoError(t, err)
	assert.Equal(t, "Up only.", got.Summary)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, got.TopPerformers)
	assert.Equal(t, []string{"a", "b"}, got.Recommendations)
	assert.Equal(t, models.TrendBullish, got.MarketTrend)
	assert.Equal(t, models.RiskHigh, got.RiskLevel)
}

func TestParseInsightRejects(t *testing.T) {
	for _, in := range []string{
		"no json at all",
		`{"summary":"","marketTrend":"neutral","riskLevel":"low"}`,
		`{"summary":"x","marketTrend":"sideways","riskLevel":"low"}`,
		`{"summary":"x","marketTrend":"neutral","riskLevel":"extreme"}`,
		`{"summary":1}`,
	} {
		_, err := ParseInsight(in)
		assert.Error(t, err, in)
	}
}

func TestInsightInputsTopTenByRank(t *testing.T) {
	in := InsightInputs(coinsFixture(15))
	require.Len(t, in, 10)
	for i, x := range in {
		assert.Equal(t, i+1, x.Rank)
	}
	assert.Empty(t, InsightInputs(nil))
}

func TestInsightGenerateSuccessAndCache(t *testing.T) {
	var hits atomic.Int32
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(chatReply("```json\n{\"summary\":\"Calm.\",\"topPerformers\":[\"BTC\"],\"marketTrend\":\"neutral\",\"recommendations\":[\"Wait\"],\"riskLevel\":\"low\"}\n```")))
	}))
	defer srv.Close()

	c := NewInsightClient(insightConfig(srv.URL, "k"), NewMemoryCache(), zap.NewNop())
	coins := coinsFixture(12)

	res := c.Generate(context.Background(), coins)
	assert.False(t, res.Fallback)
	assert.False(t, res.Cached)
	assert.Equal(t, "Calm.", res.Insight.Summary)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "llama-3.1-8b-instant", gotReq.Model)
	assert.Equal(t, 1000, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 1)
	assert.Contains(t, gotReq.Messages[0].Content, `"symbol": "C10"`)
	assert.NotContains(t, gotReq.Messages[0].Content, `"symbol": "C11"`)

	again := c.Generate(context.Background(), coins)
	assert.True(t, again.Cached)
	assert.Equal(t, res.Insight, again.Insight)
	assert.Equal(t, int32(1), hits.Load())
}

func TestInsightGenerateSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		close(started)
		<-release
		_, _ = w.Write([]byte(chatReply(`{"summary":"Calm.","topPerformers":["A"],"marketTrend":"neutral","recommendations":["hold"],"riskLevel":"low"}`)))
	}))
	defer srv.Close()

	c := NewInsightClient(insightConfig(srv.URL, "k"), NewMemoryCache(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan InsightResult, 1)
	go func() { done <- c.Generate(ctx, coinsFixture(3)) }()

	<-started
	cancel()
	close(release)

	res := <-done
	assert.False(t, res.Fallback)
	assert.Equal(t, "Calm.", res.Insight.Summary)

	again := c.Generate(context.Background(), coinsFixture(3))
	assert.True(t, again.Cached)
	assert.Equal(t, int32(1), hits.Load())
}

func TestInsightGenerateFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		"prose":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(chatReply("markets are up"))) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) },
		"body":   func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			before := testutil.ToFloat64(telemetry.InsightFallbacks)
			c := NewInsightClient(insightConfig(srv.URL, "k"), NewMemoryCache(), zap.NewNop())
			res := c.Generate(context.Background(), coinsFixture(3))
			assert.True(t, res.Fallback)
			assert.Equal(t, FallbackInsight(), res.Insight)
			assert.Equal(t, before+1, testutil.ToFloat64(telemetry.InsightFallbacks))
		})
	}
}

func TestInsightWithoutKeyFallsBack(t *testing.T) {
	c := NewInsightClient(insightConfig("http://127.0.0.1:1", ""), nil, zap.NewNop())
	assert.False(t, c.Enabled())
	res := c.Generate(context.Background(), coinsFixture(2))
	assert.True(t, res.Fallback)
	assert.Equal(t, models.TrendNeutral, res.Insight.MarketTrend)
	assert.Equal(t, models.RiskMedium, res.Insight.RiskLevel)
	assert.Len(t, res.Insight.Recommendations, 3)
}

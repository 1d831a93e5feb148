package http

import (
	"net/http"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/handlers"
	"admybrand-insights/backend-go/internal/services"
)

func NewRouter(cfg config.Config, log *zap.Logger, cache services.Cache, market *services.MarketClient, insights *services.InsightClient, snaps *services.SnapshotService) http.Handler {
	api := handlers.New(cfg, log, cache, market, insights, snaps)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", api.Health)
	mux.HandleFunc("/api/v1/market", api.Market)
	mux.HandleFunc("/api/v1/dashboard", api.Dashboard)
	mux.HandleFunc("/api/v1/table", api.Table)
	mux.HandleFunc("/api/v1/table/export", api.Export)
	mux.HandleFunc("/api/v1/history", api.History)
	mux.HandleFunc("/api/v1/insights", api.Insights)
	mux.HandleFunc("/api/v1/refresh", api.Refresh)
	mux.HandleFunc("/api/v1/stream", api.Stream)
	mux.HandleFunc("/api/v1/ws", api.WS)

	h := http.Handler(mux)
	h = withRecovery(log)(h)
	h = withLogging(log)(h)
	h = withRateLimit(newLimiter(cfg.RateLimitPerMin))(h)
	h = withRequestID(h)
	h = withCORS(h)
	return h
}

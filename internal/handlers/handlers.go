package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/config"
	"admybrand-insights/backend-go/internal/dashboard"
	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/services"
)

type API struct {
	cfg      config.Config
	log      *zap.Logger
	cache    services.Cache
	market   *services.MarketClient
	insights *services.InsightClient
	snaps    *services.SnapshotService
	now      func() time.Time
}

func New(cfg config.Config, log *zap.Logger, cache services.Cache, market *services.MarketClient, insights *services.InsightClient, snaps *services.SnapshotService) *API {
	return &API{
		cfg:      cfg,
		log:      log,
		cache:    cache,
		market:   market,
		insights: insights,
		snaps:    snaps,
		now:      time.Now,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	return false
}

// dashboardNow derives the dashboard from the snapshot currently served.
func (a *API) dashboardNow() models.DashboardResponse {
	st := a.snaps.Current()
	return dashboard.Build(st.Snapshot, dashboard.Status{
		Refreshing:      st.Refreshing,
		LastRefresh:     st.LastRefresh,
		CooldownSeconds: a.snaps.Gate().RemainingSeconds(),
	}, a.now())
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func (a *API) nowISO() string {
	return a.now().UTC().Format(time.RFC3339)
}

package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"admybrand-insights/backend-go/internal/models"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	missing := []string{}
	depsStatus := map[string]models.DepStatus{}

	if a.cache == nil {
		depsStatus["cache"] = models.DepStatus{Ok: false, Error: "not configured"}
	} else if err := a.cache.Ping(ctx); err != nil {
		missing = append(missing, "cache_unreachable")
		depsStatus["cache"] = models.DepStatus{Ok: false, Error: err.Error()}
	} else {
		depsStatus["cache"] = models.DepStatus{Ok: true}
	}

	if a.market.Healthy() {
		depsStatus["market"] = models.DepStatus{Ok: true}
	} else {
		missing = append(missing, "market_circuit_open")
		depsStatus["market"] = models.DepStatus{Ok: false, Error: "circuit open"}
	}

	st := a.snaps.Current()
	switch {
	case st.Snapshot.Empty():
		missing = append(missing, "market_snapshot")
		depsStatus["snapshot"] = models.DepStatus{Ok: false, Error: st.Meta.Err}
	case st.Meta.Stale:
		depsStatus["snapshot"] = models.DepStatus{Ok: false, Error: "stale since " + st.Meta.FetchedAt}
	default:
		depsStatus["snapshot"] = models.DepStatus{Ok: true}
	}

	if !a.insights.Enabled() {
		missing = append(missing, "insight_api_key")
	}

	resp := models.HealthResponse{
		Ok:          !st.Snapshot.Empty(),
		TsISO:       a.nowISO(),
		Service:     "backend-go",
		Version:     os.Getenv("SERVICE_VERSION"),
		DepsStatus:  depsStatus,
		DataMissing: missing,
		Features: map[string]bool{
			"redis_cache":      a.cache != nil && a.cache.Kind() == "redis",
			"ai_insights":      a.insights.Enabled(),
			"market_api_key":   a.cfg.Market.APIKey != "",
			"websocket_stream": true,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

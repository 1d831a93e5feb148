package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/dashboard"
	"admybrand-insights/backend-go/internal/models"
)

var historyPeriods = map[string]bool{
	"1h": true, "3h": true, "12h": true, "24h": true, "7d": true,
	"30d": true, "3m": true, "1y": true, "3y": true, "5y": true,
}

func (a *API) Market(w http.ResponseWriter, r *http.Request) {
	st := a.snaps.Current()
	snap := st.Snapshot
	if snap.Coins == nil {
		snap.Coins = []models.AssetRecord{}
	}
	writeJSON(w, http.StatusOK, models.MarketResponse{
		TsISO:    a.nowISO(),
		Snapshot: snap,
		Meta:     st.Meta,
	})
}

func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.dashboardNow())
}

// History serves one price series. Upstream failures answer with the last
// good series, or an empty one.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asset := q.Get("asset")
	if asset == "" {
		asset = a.cfg.Market.HistoryAssetID
	}
	period := q.Get("period")
	if period == "" {
		period = a.cfg.Market.HistoryPeriod
	}
	if !historyPeriods[period] {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	series, err := a.market.History(ctx, asset, period)
	if err != nil {
		a.log.Warn("history unavailable", zap.String("asset", asset), zap.String("period", period), zap.Error(err))
	}
	if series.Points == nil {
		series.Points = []models.HistoryPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":  a.nowISO(),
		"series": series,
		"line":   dashboard.LineSeries(series.Points),
	})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/models"
	"admybrand-insights/backend-go/internal/services"
)

const maxInsightBody = 1 << 20

// Insights answers for the current snapshot on GET and for a posted
// {"coins": [...]} body on POST. Generation failures are served as the
// fixed fallback with status 200.
func (a *API) Insights(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	var coins []models.AssetRecord
	if r.Method == http.MethodPost {
		var req models.InsightRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInsightBody))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		if req.Coins == nil {
			writeError(w, http.StatusBadRequest, "coins must be an array")
			return
		}
		coins = req.Coins
	} else {
		snap := a.snaps.Current().Snapshot
		if snap.Empty() {
			writeJSON(w, http.StatusOK, services.FallbackInsight())
			return
		}
		coins = snap.Coins
	}

	ctx, cancel := timeboxed(r, a.cfg.Insight.Timeout)
	defer cancel()

	res := a.insights.Generate(ctx, coins)
	a.log.Debug("insight served",
		zap.Int("coins", len(coins)),
		zap.Bool("fallback", res.Fallback),
		zap.Bool("cached", res.Cached),
	)
	writeJSON(w, http.StatusOK, res.Insight)
}

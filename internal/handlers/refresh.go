package handlers

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Refresh is the manual refresh control. While the cooldown runs it answers
// 429 with the remaining seconds. A failed refresh answers with the dashboard
// still being served, flagged refreshFailed.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	out := a.snaps.RefreshNow(ctx)
	if !out.Accepted {
		secs := int(math.Ceil(out.Retry.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":           "refresh_cooldown",
			"cooldownSeconds": secs,
		})
		return
	}
	if out.Err != nil {
		a.log.Warn("manual refresh failed", zap.Error(out.Err))
		resp := a.dashboardNow()
		resp.Header.RefreshFailed = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, a.dashboardNow())
}

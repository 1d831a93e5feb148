package handlers

import (
	"math"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"admybrand-insights/backend-go/internal/table"
)

// viewFromQuery reads q, sort, order and page. toggle applies a header
// click on top of the given sort.
func viewFromQuery(q url.Values) table.ViewState {
	view := table.DefaultViewState().WithSearch(q.Get("q"))
	if s := q.Get("sort"); s != "" {
		view.SortKey = table.ParseSortKey(s)
	}
	if o := q.Get("order"); o != "" {
		view.SortOrder = table.ParseSortOrder(o)
	}
	if t := q.Get("toggle"); t != "" {
		view = view.ToggleSort(table.ParseSortKey(t))
	}
	return view.WithPage(parseIntParam(q.Get("page"), 1, 1, math.MaxInt32))
}

func (a *API) Table(w http.ResponseWriter, r *http.Request) {
	view := viewFromQuery(r.URL.Query())
	st := a.snaps.Current()
	page := table.Apply(st.Snapshot.Coins, view)
	writeJSON(w, http.StatusOK, map[string]any{
		"tsISO":   a.nowISO(),
		"loading": st.Snapshot.Empty(),
		"page":    page,
	})
}

// Export downloads the filtered and sorted set, every page of it.
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	view := viewFromQuery(r.URL.Query())
	rows := table.Sorted(a.snaps.Current().Snapshot.Coins, view)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+table.ExportFilename(a.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := table.WriteCSV(w, rows); err != nil {
		a.log.Warn("csv export interrupted", zap.Int("rows", len(rows)), zap.Error(err))
	}
}

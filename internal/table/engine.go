package table

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"admybrand-insights/backend-go/internal/models"
)

type Page struct {
	Items      []models.AssetRecord `json:"items"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	ShowPager  bool                 `json:"showPager"`
	From       int                  `json:"from"`
	To         int                  `json:"to"`
	View       ViewState            `json:"view"`
}

// Apply runs filter, sort and paginate for one view state.
func Apply(records []models.AssetRecord, state ViewState) Page {
	state = state.normalized()
	rows := Sorted(records, state)
	items := Paginate(rows, state.CurrentPage, state.PageSize)
	total := len(rows)
	pages := TotalPages(total, state.PageSize)

	p := Page{
		Items:      items,
		Total:      total,
		TotalPages: pages,
		Page:       state.CurrentPage,
		PageSize:   state.PageSize,
		ShowPager:  pages > 1,
		View:       state,
	}
	if len(items) > 0 {
		p.From = (state.CurrentPage-1)*state.PageSize + 1
		p.To = p.From + len(items) - 1
	}
	return p
}

// Sorted is the filtered and sorted full set, the input of both the page
// slice and the CSV export.
func Sorted(records []models.AssetRecord, state ViewState) []models.AssetRecord {
	state = state.normalized()
	return Sort(Filter(records, state.SearchText), state.SortKey, state.SortOrder)
}

func Filter(records []models.AssetRecord, searchText string) []models.AssetRecord {
	out := make([]models.AssetRecord, 0, len(records))
	needle := strings.ToLower(searchText)
	for _, r := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Symbol), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a stably sorted copy. Records whose key is NaN stay at their
// input index; the remaining records are sorted among the other slots.
func Sort(records []models.AssetRecord, key SortKey, order SortOrder) []models.AssetRecord {
	out := slices.Clone(records)
	if out == nil {
		out = []models.AssetRecord{}
	}
	compare := comparator(key)
	if order != Asc {
		asc := compare
		compare = func(a, b models.AssetRecord) int { return asc(b, a) }
	}

	value := floatKey(key)
	if value == nil {
		slices.SortStableFunc(out, compare)
		return out
	}

	slots := make([]int, 0, len(out))
	ranked := make([]models.AssetRecord, 0, len(out))
	for i, r := range out {
		if !math.IsNaN(value(r)) {
			slots = append(slots, i)
			ranked = append(ranked, r)
		}
	}
	slices.SortStableFunc(ranked, compare)
	for i, slot := range slots {
		out[slot] = ranked[i]
	}
	return out
}

// floatKey returns the parsed value behind a numeric column, nil otherwise.
func floatKey(key SortKey) func(models.AssetRecord) float64 {
	switch key {
	case SortPrice:
		return func(r models.AssetRecord) float64 { return r.PriceUSD }
	case SortMarketCap:
		return func(r models.AssetRecord) float64 { return r.MarketCapUSD }
	case SortRank, SortName:
		return nil
	default:
		return func(r models.AssetRecord) float64 { return r.ChangePct }
	}
}

func comparator(key SortKey) func(a, b models.AssetRecord) int {
	switch key {
	case SortRank:
		return func(a, b models.AssetRecord) int { return cmp.Compare(a.Rank, b.Rank) }
	case SortName:
		return func(a, b models.AssetRecord) int { return strings.Compare(a.Name, b.Name) }
	case SortPrice:
		return func(a, b models.AssetRecord) int { return compareFloat(a.PriceUSD, b.PriceUSD) }
	case SortMarketCap:
		return func(a, b models.AssetRecord) int { return compareFloat(a.MarketCapUSD, b.MarketCapUSD) }
	default:
		return func(a, b models.AssetRecord) int { return compareFloat(a.ChangePct, b.ChangePct) }
	}
}

// compareFloat uses plain IEEE comparisons; cmp.Compare would order NaN
// first, which is not what the table does.
func compareFloat(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func Paginate(records []models.AssetRecord, page, pageSize int) []models.AssetRecord {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = PageSize
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []models.AssetRecord{}
	}
	end := min(start+pageSize, len(records))
	return slices.Clone(records[start:end])
}

func TotalPages(n, pageSize int) int {
	if pageSize < 1 {
		pageSize = PageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Package table filters, sorts, paginates and exports the asset list shown
// in the dashboard table. Every function is pure: inputs are never modified.
package table

import "strings"

const PageSize = 10

type SortKey string

const (
	SortRank      SortKey = "rank"
	SortName      SortKey = "name"
	SortPrice     SortKey = "price"
	SortChange    SortKey = "change"
	SortMarketCap SortKey = "marketCap"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ViewState is the user-controlled selection applied to a snapshot.
type ViewState struct {
	SearchText  string    `json:"searchText"`
	SortKey     SortKey   `json:"sortKey"`
	SortOrder   SortOrder `json:"sortOrder"`
	CurrentPage int       `json:"currentPage"`
	PageSize    int       `json:"pageSize"`
}

func DefaultViewState() ViewState {
	return ViewState{
		SortKey:     SortChange,
		SortOrder:   Desc,
		CurrentPage: 1,
		PageSize:    PageSize,
	}
}

// ParseSortKey accepts the key case-insensitively; unknown keys fall back to
// the default.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rank":
		return SortRank
	case "name":
		return SortName
	case "price":
		return SortPrice
	case "change":
		return SortChange
	case "marketcap", "market_cap":
		return SortMarketCap
	}
	return SortChange
}

func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

func (v ViewState) WithSearch(text string) ViewState {
	v.SearchText = text
	return v
}

func (v ViewState) WithPage(page int) ViewState {
	if page < 1 {
		page = 1
	}
	v.CurrentPage = page
	return v
}

// ToggleSort mirrors a header click: the active column flips direction,
// any other column becomes active in ascending order. The page is kept.
func (v ViewState) ToggleSort(key SortKey) ViewState {
	if v.SortKey == key {
		if v.SortOrder == Asc {
			v.SortOrder = Desc
		} else {
			v.SortOrder = Asc
		}
		return v
	}
	v.SortKey = key
	v.SortOrder = Asc
	return v
}

func (v ViewState) normalized() ViewState {
	if v.CurrentPage < 1 {
		v.CurrentPage = 1
	}
	if v.PageSize < 1 {
		v.PageSize = PageSize
	}
	if v.SortKey == "" {
		v.SortKey = SortChange
	}
	if v.SortOrder != Asc {
		v.SortOrder = Desc
	}
	return v
}

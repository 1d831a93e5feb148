package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAsset = errors.New("invalid asset record")

// AssetRecord is one tracked instrument. The decimal fields keep the raw
// upstream strings; the *USD / ChangePct values are derived from them and
// are NaN when the string does not parse.
type AssetRecord struct {
	ID        string `json:"uuid"`
	Rank      int    `json:"rank"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Change    string `json:"change"`
	MarketCap string `json:"marketCap"`
	Volume24h string `json:"24hVolume"`
	IconURL   string `json:"iconUrl"`

	PriceUSD     float64 `json:"-"`
	ChangePct    float64 `json:"-"`
	MarketCapUSD float64 `json:"-"`
	Volume24hUSD float64 `json:"-"`
}

// ParseAsset validates identity fields and derives the numeric values.
// Unparseable decimals are not an error; they become NaN.
func ParseAsset(a AssetRecord) (AssetRecord, error) {
	if strings.TrimSpace(a.ID) == "" {
		return a, fmt.Errorf("%w: empty id (%q)", ErrInvalidAsset, a.Name)
	}
	if a.Rank < 1 {
		return a, fmt.Errorf("%w: rank %d for %s", ErrInvalidAsset, a.Rank, a.ID)
	}
	return a.withValues(), nil
}

func (a AssetRecord) withValues() AssetRecord {
	a.PriceUSD = ParseDecimal(a.Price)
	a.ChangePct = ParseDecimal(a.Change)
	a.MarketCapUSD = ParseDecimal(a.MarketCap)
	a.Volume24hUSD = ParseDecimal(a.Volume24h)
	return a
}

// HasNaN reports whether any decimal field failed to parse.
func (a AssetRecord) HasNaN() bool {
	return math.IsNaN(a.PriceUSD) || math.IsNaN(a.ChangePct) ||
		math.IsNaN(a.MarketCapUSD) || math.IsNaN(a.Volume24hUSD)
}

func (a *AssetRecord) UnmarshalJSON(b []byte) error {
	type plain AssetRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = AssetRecord(p).withValues()
	return nil
}

// ParseDecimal parses a decimal string into a float64, NaN on failure.
func ParseDecimal(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

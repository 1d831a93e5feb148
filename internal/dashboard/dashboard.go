// Package dashboard derives the cards, chart series and agency panel from a
// market snapshot.
package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"admybrand-insights/backend-go/internal/format"
	"admybrand-insights/backend-go/internal/models"
)

const (
	LeadSymbol      = "BTC"
	lineSamples     = 24
	barAssets       = 8
	donutAssets     = 6
	activeVolumeUSD = 1_000_000
)

var billion = decimal.New(1, 9)

// Status is the refresh state shown in the header.
type Status struct {
	Refreshing      bool
	LastRefresh     time.Time
	CooldownSeconds int
}

func Build(snap models.MarketSnapshot, st Status, now time.Time) models.DashboardResponse {
	coins := snap.Coins
	line := LineSeries(snap.History.Points)
	avg := AverageChange(coins)
	positive := PositiveCount(coins)

	lead := leadAsset(coins)
	leadChange := models.ParseDecimal(lead.Change)
	trend := make([]float64, len(line))
	for i, p := range line {
		trend[i] = p.Price
	}

	totalVolume := 0.0
	if snap.Stats.Total24hVolume != "" {
		totalVolume = models.ParseDecimal(snap.Stats.Total24hVolume)
	}
	totalCap := snap.Stats.TotalMarketCap
	if totalCap == "" {
		totalCap = "0"
	}

	cards := []models.MetricCard{
		{
			Key:         "lead",
			Title:       "Lead Asset Performance",
			Value:       format.CurrencyString(lead.Price),
			Change:      format.PercentageString(lead.Change),
			ChangeType:  changeType(leadChange),
			Description: "Primary digital asset tracking for client portfolios",
			Trend:       trend,
		},
		{
			Key:         "volume",
			Title:       "Market Activity Volume",
			Value:       format.Currency(totalVolume),
			Change:      fmt.Sprintf("%d/%d positive", positive, len(coins)),
			ChangeType:  "positive",
			Description: "Total trading volume across all tracked assets",
		},
		{
			Key:         "opportunities",
			Title:       "Active Investment Opportunities",
			Value:       format.Count(ActiveCount(coins)),
			Change:      format.Count(snap.Stats.TotalCoins) + " total",
			ChangeType:  "positive",
			Description: "High-volume assets suitable for client campaigns",
		},
		{
			Key:         "health",
			Title:       "Portfolio Health Score",
			Value:       HealthScore(positive, len(coins)),
			Change:      format.Percentage(avg),
			ChangeType:  changeType(avg),
			Description: "Overall market sentiment and performance indicator",
		},
	}

	header := models.RefreshStatus{
		Refreshing:      st.Refreshing,
		LastUpdated:     format.LastUpdated(now, st.LastRefresh),
		CanRefresh:      !st.Refreshing && st.CooldownSeconds == 0,
		CooldownSeconds: st.CooldownSeconds,
	}
	if !st.LastRefresh.IsZero() {
		header.LastRefreshISO = st.LastRefresh.UTC().Format(time.RFC3339)
	}

	return models.DashboardResponse{
		TsISO:   now.UTC().Format(time.RFC3339),
		Loading: snap.Empty(),
		Cards:   cards,
		Charts: models.Charts{
			Line:  line,
			Bar:   BarSeries(coins),
			Donut: DonutSeries(coins),
		},
		Agency: models.AgencyPanel{
			TotalClientAssets: format.CurrencyString(totalCap),
			ActiveCampaigns:   format.Count(snap.Stats.TotalMarkets),
			PartnerPlatforms:  format.Count(snap.Stats.TotalExchanges),
			AverageROI:        format.Percentage(avg),
			AverageROIUp:      avg > 0,
		},
		Header: header,
	}
}

// LineSeries takes the first 24 samples as delivered (newest first) and
// returns them oldest first, labelled by index.
func LineSeries(points []models.HistoryPoint) []models.LinePoint {
	n := min(len(points), lineSamples)
	out := make([]models.LinePoint, n)
	for i := 0; i < n; i++ {
		p := points[n-1-i]
		out[i] = models.LinePoint{
			Name:      fmt.Sprintf("%dh", i),
			Price:     finite(p.PriceUSD),
			Timestamp: p.Timestamp,
		}
	}
	return out
}

func BarSeries(coins []models.AssetRecord) []models.BarPoint {
	n := min(len(coins), barAssets)
	out := make([]models.BarPoint, n)
	for i, c := range coins[:n] {
		out[i] = models.BarPoint{Name: c.Symbol, Change: finite(c.ChangePct)}
	}
	return out
}

// DonutSeries is market cap in billions for the top six records.
func DonutSeries(coins []models.AssetRecord) []models.DonutSlice {
	n := min(len(coins), donutAssets)
	out := make([]models.DonutSlice, n)
	for i, c := range coins[:n] {
		v := 0.0
		if d, err := decimal.NewFromString(strings.TrimSpace(c.MarketCap)); err == nil {
			v = d.Div(billion).InexactFloat64()
		}
		out[i] = models.DonutSlice{Name: c.Symbol, Value: v}
	}
	return out
}

// AverageChange is NaN when any change is unparseable and 0 for no records.
func AverageChange(coins []models.AssetRecord) float64 {
	if len(coins) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range coins {
		sum += c.ChangePct
	}
	return sum / float64(len(coins))
}

func PositiveCount(coins []models.AssetRecord) int {
	n := 0
	for _, c := range coins {
		if c.ChangePct > 0 {
			n++
		}
	}
	return n
}

func ActiveCount(coins []models.AssetRecord) int {
	n := 0
	for _, c := range coins {
		if c.Volume24hUSD > activeVolumeUSD {
			n++
		}
	}
	return n
}

// HealthScore is the share of positive records with one decimal.
func HealthScore(positive, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return decimal.NewFromInt(int64(positive)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 4).
		StringFixed(1) + "%"
}

func leadAsset(coins []models.AssetRecord) models.AssetRecord {
	for _, c := range coins {
		if c.Symbol == LeadSymbol {
			return c
		}
	}
	return models.AssetRecord{Price: "0", Change: "0"}
}

func changeType(v float64) string {
	if v > 0 {
		return "positive"
	}
	return "negative"
}

// finite maps NaN and infinities to 0 so chart payloads stay valid JSON.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

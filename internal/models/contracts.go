package models

type GlobalStats struct {
	Total          int    `json:"total"`
	TotalCoins     int    `json:"totalCoins"`
	TotalMarkets   int    `json:"totalMarkets"`
	TotalExchanges int    `json:"totalExchanges"`
	TotalMarketCap string `json:"totalMarketCap"`
	Total24hVolume string `json:"total24hVolume"`
}

type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	PriceUSD  float64 `json:"price"`
}

type HistorySeries struct {
	AssetID    string         `json:"assetId"`
	TimePeriod string         `json:"timePeriod"`
	Points     []HistoryPoint `json:"points"`
}

type MarketSnapshot struct {
	Seq       uint64        `json:"seq"`
	FetchedAt string        `json:"fetchedAt"`
	Coins     []AssetRecord `json:"coins"`
	Stats     GlobalStats   `json:"stats"`
	History   HistorySeries `json:"history"`
}

func (s MarketSnapshot) Empty() bool {
	return s.FetchedAt == ""
}

type SnapshotMeta struct {
	Source    string `json:"source"`
	Stale     bool   `json:"stale"`
	Err       string `json:"error,omitempty"`
	FetchedAt string `json:"fetchedAt,omitempty"`
}

type MarketResponse struct {
	TsISO    string         `json:"tsISO"`
	Snapshot MarketSnapshot `json:"snapshot"`
	Meta     SnapshotMeta   `json:"meta"`
}

type MarketTrend string

const (
	TrendBullish MarketTrend = "bullish"
	TrendBearish MarketTrend = "bearish"
	TrendNeutral MarketTrend = "neutral"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type MarketInsight struct {
	Summary         string      `json:"summary"`
	TopPerformers   []string    `json:"topPerformers"`
	MarketTrend     MarketTrend `json:"marketTrend"`
	Recommendations []string    `json:"recommendations"`
	RiskLevel       RiskLevel   `json:"riskLevel"`
}

// InsightInput is the reduced record sent to the language model.
type InsightInput struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Change    string `json:"change"`
	MarketCap string `json:"marketCap"`
	Rank      int    `json:"rank"`
}

type InsightRequest struct {
	Coins []AssetRecord `json:"coins"`
}

type MetricCard struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Value       string    `json:"value"`
	Change      string    `json:"change"`
	ChangeType  string    `json:"changeType"`
	Description string    `json:"description"`
	Trend       []float64 `json:"trend,omitempty"`
}

type LinePoint struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type BarPoint struct {
	Name   string  `json:"name"`
	Change float64 `json:"change"`
}

type DonutSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type Charts struct {
	Line  []LinePoint  `json:"line"`
	Bar   []BarPoint   `json:"bar"`
	Donut []DonutSlice `json:"donut"`
}

type AgencyPanel struct {
	TotalClientAssets string `json:"totalClientAssets"`
	ActiveCampaigns   string `json:"activeCampaigns"`
	PartnerPlatforms  string `json:"partnerPlatforms"`
	AverageROI        string `json:"averageRoi"`
	AverageROIUp      bool   `json:"averageRoiUp"`
}

type RefreshStatus struct {
	Refreshing      bool   `json:"refreshing"`
	LastUpdated     string `json:"lastUpdated"`
	LastRefreshISO  string `json:"lastRefreshISO,omitempty"`
	CanRefresh      bool   `json:"canRefresh"`
	CooldownSeconds int    `json:"cooldownSeconds"`
	RefreshFailed   bool   `json:"refreshFailed,omitempty"`
}

type DashboardResponse struct {
	TsISO   string        `json:"tsISO"`
	Loading bool          `json:"loading"`
	Cards   []MetricCard  `json:"cards"`
	Charts  Charts        `json:"charts"`
	Agency  AgencyPanel   `json:"agency"`
	Header  RefreshStatus `json:"header"`
}

type DepStatus struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type HealthResponse struct {
	Ok          bool                 `json:"ok"`
	TsISO       string               `json:"tsISO"`
	Service     string               `json:"service"`
	Version     string               `json:"version"`
	DepsStatus  map[string]DepStatus `json:"deps_status"`
	DataMissing []string             `json:"data_missing"`
	Features    map[string]bool      `json:"features"`
}

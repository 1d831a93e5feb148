package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	minRefreshInterval = 30 * time.Second
	maxRefreshInterval = 60 * time.Second
)

type Config struct {
	Env         string `yaml:"env"`
	Port        string `yaml:"port"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	RedisURL    string `yaml:"redis_url"`

	Market  MarketConfig  `yaml:"market"`
	Insight InsightConfig `yaml:"insight"`

	RefreshInterval       time.Duration `yaml:"refresh_interval"`
	ManualRefreshCooldown time.Duration `yaml:"manual_refresh_cooldown"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	CacheTTLSnapshot      time.Duration `yaml:"cache_ttl_snapshot"`
	CacheTTLHistory       time.Duration `yaml:"cache_ttl_history"`
	CacheTTLInsight       time.Duration `yaml:"cache_ttl_insight"`
	RateLimitPerMin       int           `yaml:"rate_limit_per_min"`
	CircuitFailLimit      int           `yaml:"circuit_fail_limit"`
	CircuitCooldown       time.Duration `yaml:"circuit_cooldown"`
}

type MarketConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"-"`
	CoinLimit      int    `yaml:"coin_limit"`
	HistoryAssetID string `yaml:"history_asset_id"`
	HistoryPeriod  string `yaml:"history_period"`
}

type InsightConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"-"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		Env:         "prod",
		Port:        "8080",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		RedisURL:    "redis://localhost:6379",
		Market: MarketConfig{
			BaseURL:        "https://api.coinranking.com/v2",
			CoinLimit:      50,
			HistoryAssetID: "Qwsogvtv82FCd",
			HistoryPeriod:  "1h",
		},
		Insight: InsightConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     30 * time.Second,
		},
		RefreshInterval:       30 * time.Second,
		ManualRefreshCooldown: 60 * time.Second,
		RequestTimeout:        12 * time.Second,
		CacheTTLSnapshot:      24 * time.Hour,
		CacheTTLHistory:       60 * time.Second,
		CacheTTLInsight:       5 * time.Minute,
		RateLimitPerMin:       120,
		CircuitFailLimit:      3,
		CircuitCooldown:       20 * time.Second,
	}
}

// Load builds the config from defaults, the optional YAML file named by
// DASHBOARD_CONFIG, and finally the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.Validate()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = getEnv("ENV", c.Env)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.Market.BaseURL = getEnv("COINRANKING_BASE_URL", c.Market.BaseURL)
	c.Market.APIKey = getEnv("COINRANKING_API_KEY", c.Market.APIKey)
	c.Market.CoinLimit = getEnvInt("COIN_LIMIT", c.Market.CoinLimit)
	c.Market.HistoryAssetID = getEnv("HISTORY_ASSET_ID", c.Market.HistoryAssetID)
	c.Market.HistoryPeriod = getEnv("HISTORY_PERIOD", c.Market.HistoryPeriod)

	c.Insight.BaseURL = getEnv("GROQ_BASE_URL", c.Insight.BaseURL)
	c.Insight.APIKey = getEnv("GROQ_API_KEY", c.Insight.APIKey)
	c.Insight.Model = getEnv("GROQ_MODEL", c.Insight.Model)
	c.Insight.Timeout = getEnvDuration("INSIGHT_TIMEOUT", c.Insight.Timeout)

	c.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", c.RefreshInterval)
	c.ManualRefreshCooldown = getEnvDuration("MANUAL_REFRESH_COOLDOWN", c.ManualRefreshCooldown)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.CacheTTLSnapshot = getEnvDuration("CACHE_TTL_SNAPSHOT", c.CacheTTLSnapshot)
	c.CacheTTLHistory = getEnvDuration("CACHE_TTL_HISTORY", c.CacheTTLHistory)
	c.CacheTTLInsight = getEnvDuration("CACHE_TTL_INSIGHT", c.CacheTTLInsight)
	c.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", c.RateLimitPerMin)
	c.CircuitFailLimit = getEnvInt("CIRCUIT_FAIL_LIMIT", c.CircuitFailLimit)
	c.CircuitCooldown = getEnvDuration("CIRCUIT_COOLDOWN", c.CircuitCooldown)
}

// Validate pulls out-of-range values back to something usable. It never fails.
func (c *Config) Validate() {
	def := Default()
	if c.RefreshInterval < minRefreshInterval {
		c.RefreshInterval = minRefreshInterval
	}
	if c.RefreshInterval > maxRefreshInterval {
		c.RefreshInterval = maxRefreshInterval
	}
	if c.ManualRefreshCooldown <= 0 {
		c.ManualRefreshCooldown = def.ManualRefreshCooldown
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.Market.CoinLimit <= 0 || c.Market.CoinLimit > 100 {
		c.Market.CoinLimit = def.Market.CoinLimit
	}
	if strings.TrimSpace(c.Market.HistoryPeriod) == "" {
		c.Market.HistoryPeriod = def.Market.HistoryPeriod
	}
	if c.Insight.MaxTokens <= 0 {
		c.Insight.MaxTokens = def.Insight.MaxTokens
	}
	if c.Insight.Timeout <= 0 {
		c.Insight.Timeout = c.RequestTimeout
	}
	if c.CircuitFailLimit <= 0 {
		c.CircuitFailLimit = def.CircuitFailLimit
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = def.RateLimitPerMin
	}
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

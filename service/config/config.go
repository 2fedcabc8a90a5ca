package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	e "stockdash/data/extensions"
)

const (
	PriceSourceYahoo        = "yahoo"
	PriceSourceAlphaVantage = "alphavantage"
)

// Config holds the service configuration. Secrets only ever come from the environment or .env.
type Config struct {
	Http struct {
		Addr           string        `yaml:"addr"`
		CorsOrigins    []string      `yaml:"cors_origins"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"http"`
	Database struct {
		Url string `yaml:"-"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"-"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Providers struct {
		PriceSource        string `yaml:"price_source"`
		AlphaVantageKey    string `yaml:"-"`
		AlphaVantageSeries string `yaml:"alphavantage_series"`
		NewsFeedUrl        string `yaml:"news_feed_url"`
		NewsLimit          int    `yaml:"news_limit"`
	} `yaml:"providers"`
	Cache struct {
		FundamentalsTTL time.Duration `yaml:"fundamentals_ttl"`
		NewsTTL         time.Duration `yaml:"news_ttl"`
	} `yaml:"cache"`
	Sync struct {
		Cron      string        `yaml:"cron"`
		Watchlist []string      `yaml:"watchlist"`
		Freshness time.Duration `yaml:"freshness"`
		Lookback  time.Duration `yaml:"lookback"`
		Workers   int           `yaml:"workers"`
	} `yaml:"sync"`
}

// Load reads the optional yaml file at path, then .env, then applies environment overrides and defaults
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// existing environment variables win over .env
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Http.Addr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Http.CorsOrigins = e.SplitAndTrim(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Url = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantageKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_SERIES"); v != "" {
		c.Providers.AlphaVantageSeries = v
	}
	if v := os.Getenv("PRICE_SOURCE"); v != "" {
		c.Providers.PriceSource = strings.ToLower(v)
	}
	if v := os.Getenv("NEWS_FEED_URL"); v != "" {
		c.Providers.NewsFeedUrl = v
	}
	if v := os.Getenv("SYNC_CRON"); v != "" {
		c.Sync.Cron = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Sync.Watchlist = e.SplitAndTrim(v)
	}

	ints := map[string]*int{
		"REDIS_DB":     &c.Redis.DB,
		"NEWS_LIMIT":   &c.Providers.NewsLimit,
		"SYNC_WORKERS": &c.Sync.Workers,
	}
	for key, target := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer, got %q", key, v)
			}
			*target = n
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":  &c.Http.RequestTimeout,
		"FUNDAMENTALS_TTL": &c.Cache.FundamentalsTTL,
		"NEWS_TTL":         &c.Cache.NewsTTL,
		"SYNC_FRESHNESS":   &c.Sync.Freshness,
		"SYNC_LOOKBACK":    &c.Sync.Lookback,
	}
	for key, target := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s must be a duration, got %q: %w", key, v, err)
			}
			*target = d
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Http.Addr == "" {
		c.Http.Addr = ":8080"
	}
	if len(c.Http.CorsOrigins) == 0 {
		c.Http.CorsOrigins = []string{"http://localhost:3000"}
	}
	if c.Http.RequestTimeout == 0 {
		c.Http.RequestTimeout = 30 * time.Second
	}
	if c.Providers.PriceSource == "" {
		c.Providers.PriceSource = PriceSourceYahoo
	}
	if c.Providers.NewsFeedUrl == "" {
		c.Providers.NewsFeedUrl = "https://feeds.finance.yahoo.com"
	}
	if c.Providers.NewsLimit == 0 {
		c.Providers.NewsLimit = 10
	}
	if c.Cache.FundamentalsTTL == 0 {
		c.Cache.FundamentalsTTL = 24 * time.Hour
	}
	if c.Cache.NewsTTL == 0 {
		c.Cache.NewsTTL = 15 * time.Minute
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "0 30 22 * * 1-5"
	}
	if c.Sync.Freshness == 0 {
		c.Sync.Freshness = 12 * time.Hour
	}
	if c.Sync.Lookback == 0 {
		c.Sync.Lookback = 5 * 365 * 24 * time.Hour
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = 4
	}

	for i, s := range c.Sync.Watchlist {
		c.Sync.Watchlist[i] = e.NormalizeSymbol(s)
	}
	c.Sync.Watchlist = e.Unique(c.Sync.Watchlist)
}

// Validate checks the combination of settings the service cannot start without
func (c *Config) Validate() error {
	switch c.Providers.PriceSource {
	case PriceSourceYahoo:
	case PriceSourceAlphaVantage:
		if c.Providers.AlphaVantageKey == "" {
			return fmt.Errorf("ALPHAVANTAGE_API_KEY is required when PRICE_SOURCE is %s", PriceSourceAlphaVantage)
		}
	default:
		return fmt.Errorf("unknown price source %q", c.Providers.PriceSource)
	}

	if c.Providers.NewsLimit < 0 {
		return fmt.Errorf("news limit must not be negative")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync workers must be positive")
	}
	if c.Http.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Sync.Cron); err != nil {
		return fmt.Errorf("invalid sync cron %q: %w", c.Sync.Cron, err)
	}

	return nil
}

// HasDatabase reports whether a postgres store is configured
func (c *Config) HasDatabase() bool { return c.Database.Url != "" }

func (c *Config) HasRedis() bool { return c.Redis.Addr != "" }

// HasFundamentals reports whether statements can be fetched, they always need an alpha vantage key
func (c *Config) HasFundamentals() bool { return c.Providers.AlphaVantageKey != "" }

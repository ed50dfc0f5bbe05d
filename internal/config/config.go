package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketAdvisor/internal/retry"
)

// ConfigPathEnv names the YAML configuration file read by Load.
const ConfigPathEnv = "MARKET_ADVISOR_CONFIG"

const (
	defaultTimezone     = "UTC"
	databaseDSNEnv      = "DATABASE_DSN"
	geminiAPIKeyEnv     = "GEMINI_API_KEY"
	reasoningEndpoint   = "REASONING_ENDPOINT"
	newsAPIKeyEnv       = "NEWSAPI_KEY"
	rssURLEnv           = "RSS_URL"
	browserEndpointsEnv = "BROWSER_ENDPOINTS"
	workerCountEnv      = "WORKER_COUNT"
	storeDriverEnv      = "STORE_DRIVER"
	storePathEnv        = "STORE_PATH"
	redisAddrEnv        = "REDIS_ADDR"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	logLevelEnv         = "LOG_LEVEL"

	// rssSeparator splits RSS_URL into feeds.
	rssSeparator = ";;"
)

// Store drivers.
const (
	StoreBadger = "badger"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Reasoning providers.
const (
	ProviderGenAI = "genai"
	ProviderHTTP  = "http"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging         LoggingConfig        `yaml:"logging"`
	Scheduler       SchedulerConfig      `yaml:"scheduler"`
	Pipeline        PipelineConfig       `yaml:"pipeline"`
	Market          MarketConfig         `yaml:"market"`
	Browser         BrowserConfig        `yaml:"browser"`
	Reasoning       ReasoningConfig      `yaml:"reasoning"`
	Store           StoreConfig          `yaml:"store"`
	Database        DatabaseConfig       `yaml:"database"`
	Recommendations RecommendationConfig `yaml:"recommendations"`
	Notifications   NotificationConfig   `yaml:"notifications"`
	Metrics         MetricsConfig        `yaml:"metrics"`
	Sites           []SiteConfig         `yaml:"sites"`
}

// LoggingConfig selects verbosity and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunTimeout     time.Duration  `yaml:"runTimeout"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig sizes the fan-out stages.
type PipelineConfig struct {
	WorkerCount  int          `yaml:"workerCount"`
	EnsembleSize int          `yaml:"ensembleSize"`
	Retry        retry.Policy `yaml:"retry"`
	Workspace    string       `yaml:"workspace"`
	LookbackDays int          `yaml:"lookbackDays"`
}

// MarketConfig names the traded asset and the chart captured for it.
type MarketConfig struct {
	Symbol   string `yaml:"symbol"`
	ChartURL string `yaml:"chartUrl"`
}

// BrowserConfig lists the browser-automation endpoints and capture geometry.
type BrowserConfig struct {
	Endpoints      []string      `yaml:"endpoints"`
	ViewportWidth  int           `yaml:"viewportWidth"`
	ViewportHeight int           `yaml:"viewportHeight"`
	ScrollStep     int           `yaml:"scrollStep"`
	SettleDelay    time.Duration `yaml:"settleDelay"`
	CaptureTimeout time.Duration `yaml:"captureTimeout"`
}

// ReasoningConfig defines how to contact the reasoning service.
type ReasoningConfig struct {
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"apiKey"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
}

// StoreConfig selects the PipelineStore backend.
type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig describes a shared Redis store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// DatabaseConfig describes Postgres connection details; empty DSN disables the ledger.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RecommendationConfig locates the columnar recommendation files.
type RecommendationConfig struct {
	ParquetDir string `yaml:"parquetDir"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig sets the Prometheus listen address; empty disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SiteConfig describes a single news site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoints to crawl (feed URLs, listing pages).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg
}

// LoadFile decodes a YAML file over the defaults without env overrides.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}
	cfg.bindTimezone()
	return cfg, nil
}

// Validate reports settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Pipeline.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workerCount must be >= 1, got %d", c.Pipeline.WorkerCount))
	}
	if c.Pipeline.EnsembleSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.ensembleSize must be >= 1, got %d", c.Pipeline.EnsembleSize))
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("pipeline.retry.maxAttempts must be >= 1, got %d", c.Pipeline.Retry.MaxAttempts))
	}
	if c.Pipeline.Workspace == "" {
		errs = append(errs, errors.New("pipeline.workspace is required"))
	}
	if len(c.Browser.Endpoints) == 0 {
		errs = append(errs, errors.New("browser.endpoints must list at least one endpoint"))
	}
	switch c.Store.Driver {
	case StoreBadger, StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Reasoning.Provider {
	case ProviderGenAI, ProviderHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown reasoning.provider %q", c.Reasoning.Provider))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Reasoning.APIKey = v
	}

	if v := os.Getenv(reasoningEndpoint); v != "" {
		c.Reasoning.Endpoint = v
		c.Reasoning.Provider = ProviderHTTP
	}

	if v := os.Getenv(browserEndpointsEnv); v != "" {
		c.Browser.Endpoints = splitList(v, ",")
	}

	if v := os.Getenv(workerCountEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.WorkerCount = n
		} else {
			log.Printf("config: ignoring %s=%q: %v", workerCountEnv, v, err)
		}
	}

	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = v
	}

	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Store.Redis.Addr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(rssURLEnv); v != "" {
		c.setRSSFeeds(splitList(v, rssSeparator))
	}

	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		for i := range c.Sites {
			if c.Sites[i].Scanner == "newsapi" {
				if c.Sites[i].Options == nil {
					c.Sites[i].Options = map[string]string{}
				}
				c.Sites[i].Options["apiKey"] = v
			}
		}
	}
}

// setRSSFeeds replaces the categories of every rss site, adding one if absent.
func (c *Config) setRSSFeeds(urls []string) {
	categories := make([]CategoryConfig, 0, len(urls))
	for i, u := range urls {
		categories = append(categories, CategoryConfig{Name: fmt.Sprintf("feed-%d", i+1), URL: u})
	}

	found := false
	for i := range c.Sites {
		if c.Sites[i].Scanner == "rss" {
			c.Sites[i].Categories = categories
			found = true
		}
	}
	if !found {
		c.Sites = append(c.Sites, SiteConfig{Name: "rss", Scanner: "rss", Categories: categories})
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			CronExpression: "30 0 * * *",
			Timezone:       defaultTimezone,
			RunTimeout:     2 * time.Hour,
			location:       tz,
		},
		Pipeline: PipelineConfig{
			WorkerCount:  4,
			EnsembleSize: 4,
			Retry:        retry.DefaultPolicy(),
			Workspace:    "/var/lib/marketadvisor",
			LookbackDays: 1,
		},
		Market: MarketConfig{
			Symbol:   "BTC",
			ChartURL: "https://www.binance.com/en/trade/BTC_USDT?type=spot",
		},
		Browser: BrowserConfig{
			Endpoints:      []string{"ws://localhost:9222"},
			ViewportWidth:  1750,
			ViewportHeight: 1080,
			ScrollStep:     460,
			SettleDelay:    4 * time.Second,
			CaptureTimeout: 3 * time.Minute,
		},
		Reasoning: ReasoningConfig{
			Provider:          ProviderGenAI,
			Model:             "gemini-2.0-flash",
			Temperature:       0.4,
			Timeout:           2 * time.Minute,
			RequestsPerMinute: 60,
		},
		Store: StoreConfig{
			Driver: StoreBadger,
			Path:   "/var/lib/marketadvisor/store",
			Redis:  RedisConfig{Namespace: "marketadvisor:"},
		},
		Recommendations: RecommendationConfig{ParquetDir: "/var/lib/marketadvisor/recommendations"},
		Metrics:         MetricsConfig{Addr: ":9102"},
		Sites: []SiteConfig{
			{
				Name:    "crypto-rss",
				Scanner: "rss",
				Categories: []CategoryConfig{
					{Name: "coindesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/"},
					{Name: "cointelegraph", URL: "https://cointelegraph.com/rss"},
				},
			},
			{
				Name:    "newsapi-headlines",
				Scanner: "newsapi",
				Options: map[string]string{"country": "us"},
			},
		},
	}
}

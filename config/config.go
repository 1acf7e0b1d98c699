package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	MarketProviderYahoo    = "yahoo"
	MarketProviderLongport = "longport"

	NewsProviderNewsAPI = "newsapi"
	NewsProviderFinnhub = "finnhub"

	ScorerNeutral = "neutral"
	ScorerLLM     = "llm"

	LLMProviderDeepSeek = "deepseek"
	LLMProviderOpenAI   = "openai"

	WeightByQuantity = "quantity"
	WeightByValue    = "value"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`

	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`

	// Market data
	MarketProvider   string `json:"market_provider"`
	BenchmarkSymbol  string `json:"benchmark_symbol"`
	HistoryPeriod    string `json:"history_period"`
	FetchConcurrency int    `json:"fetch_concurrency"`
	CacheEnabled     bool   `json:"cache_enabled"`
	CacheTTLSeconds  int    `json:"cache_ttl_seconds"`
	CacheCapacity    int    `json:"cache_capacity"`
	RetryMaxRetries  int    `json:"retry_max_retries"`
	RetryBaseDelayMS int    `json:"retry_base_delay_ms"`

	// Risk model
	RiskFreeRate  float64 `json:"risk_free_rate"`
	TradingDays   int     `json:"trading_days"`
	VaRConfidence float64 `json:"var_confidence"`
	WeightScheme  string  `json:"weight_scheme"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// News
	NewsProvider      string `json:"news_provider"`
	NewsAPIKey        string `json:"news_api_key"`
	NewsAPIBaseURL    string `json:"news_api_base_url"`
	FinnhubAPIKey     string `json:"finnhub_api_key"`
	FinnhubBaseURL    string `json:"finnhub_base_url"`
	NewsLanguage      string `json:"news_language"`
	NewsLookbackDays  int    `json:"news_lookback_days"`
	NewsPageSize      int    `json:"news_page_size"`
	NewsSkipKnownURLs bool   `json:"news_skip_known_urls"`

	// Sentiment / LLM
	SentimentScorer string `json:"sentiment_scorer"`
	LLMProvider     string `json:"llm_provider"`
	LLMModel        string `json:"llm_model"`
	LLMBaseURL      string `json:"llm_base_url"`
	LLMAPIKey       string `json:"llm_api_key"`
	LLMMaxTokens    int    `json:"llm_max_tokens"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns the built-in defaults with every path
// rooted at root. The environment is not consulted.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		DataDir:      filepath.Join(root, "data"),
		DatabasePath: filepath.Join(root, "data", "articles.db"),

		LogLevel: "info",

		MarketProvider:   MarketProviderYahoo,
		BenchmarkSymbol:  "^GSPC",
		HistoryPeriod:    "1y",
		FetchConcurrency: 4,
		CacheEnabled:     true,
		CacheTTLSeconds:  900,
		CacheCapacity:    256,
		RetryMaxRetries:  3,
		RetryBaseDelayMS: 500,

		RiskFreeRate:  0.03,
		TradingDays:   252,
		VaRConfidence: 0.95,
		WeightScheme:  WeightByQuantity,

		NewsProvider:     NewsProviderNewsAPI,
		NewsAPIBaseURL:   "https://newsapi.org",
		FinnhubBaseURL:   "https://finnhub.io/api/v1",
		NewsLanguage:     "en",
		NewsLookbackDays: 7,
		NewsPageSize:     20,

		SentimentScorer: ScorerNeutral,
		LLMProvider:     LLMProviderDeepSeek,
		LLMModel:        "deepseek-chat",
		LLMBaseURL:      "https://api.deepseek.com/v1",
		LLMMaxTokens:    512,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

// ApplyEnv overlays values from the environment (and a .env file in the
// working directory) onto c. Unset variables leave fields untouched.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
		c.DatabasePath = filepath.Join(val, "articles.db")
	}
	if val := os.Getenv("DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("LOG_PRETTY"); val != "" {
		if pretty, err := strconv.ParseBool(val); err == nil {
			c.LogPretty = pretty
		}
	}

	if val := os.Getenv("MARKET_PROVIDER"); val != "" {
		c.MarketProvider = val
	}
	if val := os.Getenv("BENCHMARK_SYMBOL"); val != "" {
		c.BenchmarkSymbol = val
	}
	if val := os.Getenv("HISTORY_PERIOD"); val != "" {
		c.HistoryPeriod = val
	}
	if val := os.Getenv("FETCH_CONCURRENCY"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.FetchConcurrency = v
		}
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("CACHE_TTL_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.CacheTTLSeconds = v
		}
	}

	if val := os.Getenv("RISK_FREE_RATE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.RiskFreeRate = v
		}
	}
	if val := os.Getenv("WEIGHT_SCHEME"); val != "" {
		c.WeightScheme = val
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("NEWS_PROVIDER"); val != "" {
		c.NewsProvider = val
	}
	if val := os.Getenv("NEWS_API_KEY"); val != "" {
		c.NewsAPIKey = val
	}
	if val := os.Getenv("CORTEXFOLIO_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
	if val := os.Getenv("NEWS_LOOKBACK_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.NewsLookbackDays = v
		}
	}

	if val := os.Getenv("SENTIMENT_SCORER"); val != "" {
		c.SentimentScorer = val
	}
	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("LLM_BASE_URL"); val != "" {
		c.LLMBaseURL = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}
	if val := os.Getenv("LLM_API_KEY"); val != "" {
		c.LLMAPIKey = val
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

// Validate rejects configurations the engine cannot be built from. API
// keys are not checked here; the providers report them when used.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	switch c.MarketProvider {
	case MarketProviderYahoo, MarketProviderLongport:
	default:
		errs = append(errs, fmt.Errorf("unknown market_provider %q", c.MarketProvider))
	}
	switch c.NewsProvider {
	case NewsProviderNewsAPI, NewsProviderFinnhub:
	default:
		errs = append(errs, fmt.Errorf("unknown news_provider %q", c.NewsProvider))
	}
	switch c.SentimentScorer {
	case ScorerNeutral, ScorerLLM:
	default:
		errs = append(errs, fmt.Errorf("unknown sentiment_scorer %q", c.SentimentScorer))
	}
	if c.SentimentScorer == ScorerLLM {
		switch c.LLMProvider {
		case LLMProviderDeepSeek, LLMProviderOpenAI:
		default:
			errs = append(errs, fmt.Errorf("unknown llm_provider %q", c.LLMProvider))
		}
	}
	switch c.WeightScheme {
	case WeightByQuantity, WeightByValue:
	default:
		errs = append(errs, fmt.Errorf("unknown weight_scheme %q", c.WeightScheme))
	}
	if strings.TrimSpace(c.BenchmarkSymbol) == "" {
		errs = append(errs, errors.New("benchmark_symbol is required"))
	}
	if c.TradingDays <= 0 {
		errs = append(errs, fmt.Errorf("trading_days must be positive, got %d", c.TradingDays))
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		errs = append(errs, fmt.Errorf("var_confidence must be in (0, 1), got %v", c.VaRConfidence))
	}
	if c.FetchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("fetch_concurrency must not be negative, got %d", c.FetchConcurrency))
	}
	if c.CacheEnabled && (c.CacheTTLSeconds <= 0 || c.CacheCapacity <= 0) {
		errs = append(errs, errors.New("cache_ttl_seconds and cache_capacity must be positive when the cache is enabled"))
	}
	if c.RetryMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry_max_retries must not be negative, got %d", c.RetryMaxRetries))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.DataDir}
	if c.DatabasePath != "" && c.DatabasePath != ":memory:" {
		dirs = append(dirs, filepath.Dir(c.DatabasePath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.LongportAppKey = mask(c.LongportAppKey)
	c.LongportAppSecret = mask(c.LongportAppSecret)
	c.LongportAccessToken = mask(c.LongportAccessToken)
	c.NewsAPIKey = mask(c.NewsAPIKey)
	c.FinnhubAPIKey = mask(c.FinnhubAPIKey)
	c.LLMAPIKey = mask(c.LLMAPIKey)
	return c
}

// Package app assembles the components described by a config.Config into
// an Engine and keeps it current while the config file changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
	"github.com/dyike/CortexFolio/internal/logger"
	"github.com/dyike/CortexFolio/internal/marketdata"
	"github.com/dyike/CortexFolio/internal/news"
	"github.com/dyike/CortexFolio/internal/portfolio"
	"github.com/dyike/CortexFolio/internal/risk"
	"github.com/dyike/CortexFolio/internal/sentiment"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/internal/tools"
	"github.com/dyike/CortexFolio/pkg/dataflows"
)

const Version = "v0.3.0"

type Engine struct {
	Config  config.Config
	BuiltAt time.Time
	Version uint64
	Log     zerolog.Logger

	Market   *marketdata.Accessor
	Analyzer *portfolio.Analyzer
	Store    *storage.Store
	News     *news.Service
	Scorer   sentiment.Scorer
	Tools    *tools.Toolkit

	closers []func() error
}

var engineSeq atomic.Uint64

// BuildEngine wires every component from cfg. The article database is
// opened here and released by Close.
func BuildEngine(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	ctx := context.Background()

	e := &Engine{
		Config:  cfg,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
		Log:     log,
	}

	provider, err := newMarketProvider(&cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := provider.(interface{ Close() error }); ok {
		e.closers = append(e.closers, c.Close)
	}

	retry := retryConfig(&cfg)
	e.Market = marketdata.NewAccessor(provider, marketdata.Options{
		Retry:         retry,
		CacheEnabled:  cfg.CacheEnabled,
		CacheTTL:      time.Duration(cfg.CacheTTLSeconds) * time.Second,
		CacheCapacity: cfg.CacheCapacity,
		Logger:        log,
	})

	calc := risk.NewCalculator(risk.Params{
		RiskFreeRate:  cfg.RiskFreeRate,
		TradingDays:   cfg.TradingDays,
		VaRConfidence: cfg.VaRConfidence,
		WeightScheme:  cfg.WeightScheme,
	})
	e.Analyzer = portfolio.NewAnalyzer(e.Market, calc, portfolio.Options{
		Benchmark:   cfg.BenchmarkSymbol,
		Period:      cfg.HistoryPeriod,
		Concurrency: cfg.FetchConcurrency,
		Logger:      log,
	})

	e.Store, err = storage.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.closers = append(e.closers, e.Store.Close)

	e.Scorer, err = sentiment.New(ctx, &cfg, log)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	e.News = news.NewService(newNewsProvider(&cfg, retry), e.Store, e.Scorer, news.Options{
		LookbackDays:  cfg.NewsLookbackDays,
		Language:      cfg.NewsLanguage,
		PageSize:      cfg.NewsPageSize,
		SkipKnownURLs: cfg.NewsSkipKnownURLs,
		Logger:        log,
	})

	e.Tools = &tools.Toolkit{
		Market:   e.Market,
		Analyzer: e.Analyzer,
		News:     e.News,
		Articles: e.Store,
	}

	log.Debug().
		Uint64("version", e.Version).
		Str("market_provider", cfg.MarketProvider).
		Str("news_provider", cfg.NewsProvider).
		Str("scorer", cfg.SentimentScorer).
		Msg("engine built")
	return e, nil
}

// Close releases the database and provider connections. It is safe to
// call more than once.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func newMarketProvider(cfg *config.Config) (marketdata.Provider, error) {
	switch cfg.MarketProvider {
	case config.MarketProviderLongport:
		c, err := dataflows.NewLongportClient(dataflows.LongportConfig{
			AppKey:      cfg.LongportAppKey,
			AppSecret:   cfg.LongportAppSecret,
			AccessToken: cfg.LongportAccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("longport provider: %w", err)
		}
		return c, nil
	default:
		return dataflows.NewYahooFinanceClient(), nil
	}
}

func newNewsProvider(cfg *config.Config, retry dataflows.RetryConfig) news.Provider {
	switch cfg.NewsProvider {
	case config.NewsProviderFinnhub:
		return dataflows.NewFinnhubClient(cfg.FinnhubBaseURL, cfg.FinnhubAPIKey, retry)
	default:
		return dataflows.NewNewsAPIClient(cfg.NewsAPIBaseURL, cfg.NewsAPIKey, retry)
	}
}

func retryConfig(cfg *config.Config) dataflows.RetryConfig {
	r := dataflows.DefaultRetryConfig()
	r.MaxRetries = cfg.RetryMaxRetries
	if cfg.RetryBaseDelayMS > 0 {
		r.BaseDelay = time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond
	}
	return r
}

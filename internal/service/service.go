// Package service exposes the engine to host applications through a
// method-name plus JSON-params interface.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/app"
	"github.com/dyike/CortexFolio/pkg/bridge"
)

const callTimeout = 2 * time.Minute

type Service struct {
	rt  *app.Runtime
	mgr *config.Manager
}

func New(rt *app.Runtime, mgr *config.Manager) *Service {
	return &Service{rt: rt, mgr: mgr}
}

// Open loads (or creates) config.json in workDir, applies configJSON on
// top when given and starts a runtime that reports reloads through the
// bridge.
func Open(workDir, configJSON string, log zerolog.Logger) (*Service, error) {
	mgr, err := config.NewManager(
		config.WithConfigDir(workDir),
		config.WithInitialConfig(config.DefaultConfigWithRoot(workDir)),
		config.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(configJSON) != "" {
		if err := mgr.Patch(configJSON); err != nil {
			return nil, err
		}
	}
	rt, err := app.NewRuntime(mgr,
		app.WithLogger(log),
		app.WithNotifier(bridge.Notify),
		app.WithBuilder(func(c config.Config) (*app.Engine, error) {
			c.ApplyEnv()
			if err := c.EnsureDirectories(); err != nil {
				return nil, err
			}
			return app.BuildEngine(c)
		}),
	)
	if err != nil {
		return nil, err
	}
	return New(rt, mgr), nil
}

func (s *Service) Close() error {
	return s.rt.Close()
}

func (s *Service) engine() (*app.Engine, error) {
	e := s.rt.Engine()
	if e == nil {
		return nil, fmt.Errorf("engine is not running")
	}
	return e, nil
}

func decode[T any](paramsJSON string) (T, error) {
	var p T
	if strings.TrimSpace(paramsJSON) == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
		return p, fmt.Errorf("invalid params: %w", err)
	}
	return p, nil
}

type SymbolParams struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

type PortfolioParams struct {
	Portfolio models.Portfolio `json:"portfolio"`
}

type NewsParams struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit"`
}

type ArticleParams struct {
	Source string    `json:"source"`
	Since  time.Time `json:"since"`
	Until  time.Time `json:"until"`
	Limit  int       `json:"limit"`
}

type QueryParams struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func (s *Service) SystemInfo() any {
	info := map[string]any{
		"version":    app.Version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS + "/" + runtime.GOARCH,
	}
	if s.mgr != nil {
		info["config_path"] = s.mgr.Path()
	}
	if e := s.rt.Engine(); e != nil {
		info["engine_version"] = e.Version
		info["built_at"] = e.BuiltAt.UTC().Format(time.RFC3339)
		info["market_provider"] = e.Market.ProviderName()
	}
	return info
}

func (s *Service) Quote(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[SymbolParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Market.CurrentQuote(ctx, p.Symbol)
}

func (s *Service) History(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[SymbolParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	if p.Period == "" {
		p.Period = e.Config.HistoryPeriod
	}
	return e.Market.HistoricalSeries(ctx, p.Symbol, p.Period)
}

func (s *Service) Profile(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[SymbolParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Market.CompanyProfile(ctx, p.Symbol)
}

// Portfolio runs one of risk, performance, holdings or report.
func (s *Service) Portfolio(ctx context.Context, kind, paramsJSON string) (any, error) {
	p, err := decode[PortfolioParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "risk":
		return e.Analyzer.Risk(ctx, p.Portfolio)
	case "performance":
		return e.Analyzer.Performance(ctx, p.Portfolio)
	case "holdings":
		return e.Analyzer.Holdings(ctx, p.Portfolio)
	case "report":
		return e.Analyzer.Report(ctx, p.Portfolio)
	default:
		return nil, fmt.Errorf("unknown portfolio method %q", kind)
	}
}

func (s *Service) Headlines(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[NewsParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.News.Headlines(ctx, p.Keyword, p.Limit)
}

// Ingest stores articles for the keyword and announces the result on the
// "news.ingested" topic.
func (s *Service) Ingest(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[NewsParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	res, err := e.News.Ingest(ctx, p.Keyword)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(res); err == nil {
		bridge.Notify("news.ingested", string(payload))
	}
	return res, nil
}

func (s *Service) Articles(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[ArticleParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	articles, err := e.Store.ListArticles(ctx, storage.ArticleFilter{
		Source: p.Source,
		Since:  p.Since,
		Until:  p.Until,
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return articles, nil
}

func (s *Service) Query(ctx context.Context, paramsJSON string) (any, error) {
	p, err := decode[QueryParams](paramsJSON)
	if err != nil {
		return nil, err
	}
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Store.Query(ctx, p.SQL, p.Args...)
}

func (s *Service) Config() (any, error) {
	if s.mgr == nil {
		return nil, fmt.Errorf("no config manager")
	}
	return s.mgr.Get().Redacted(), nil
}

// UpdateConfig patches config.json. The runtime rebuilds the engine from
// the new settings before this returns.
func (s *Service) UpdateConfig(paramsJSON string) (any, error) {
	if s.mgr == nil {
		return nil, fmt.Errorf("no config manager")
	}
	if err := s.mgr.Patch(paramsJSON); err != nil {
		return nil, err
	}
	return s.mgr.Get().Redacted(), nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexFolio/internal/debug"
	"github.com/dyike/CortexFolio/internal/storage"
	"github.com/dyike/CortexFolio/models"
	"github.com/dyike/CortexFolio/pkg/app"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	s := &state{}

	rootCmd := &cobra.Command{
		Use:   "cortexfolio",
		Short: "CortexFolio - portfolio risk, performance and market news",
		Long: `CortexFolio analyses a stock portfolio against a benchmark: volatility, beta,
Sharpe ratio, value at risk, drawdown and diversification, plus current
quotes and sentiment-scored news headlines. Articles can be stored in a
local SQLite database and queried with SQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context(), s, cmd.OutOrStdout())
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.configDir, "config-dir", "", "Directory holding config.json (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&s.jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newQuoteCmd(s),
		newHistoryCmd(s),
		newProfileCmd(s),
		newPortfolioCmd(s, "risk", "Calculate portfolio risk metrics"),
		newPortfolioCmd(s, "performance", "Analyze portfolio performance against the benchmark"),
		newPortfolioCmd(s, "holdings", "Show current value and weight of each holding"),
		newReportCmd(s),
		newReportsCmd(s),
		newNewsCmd(s),
		newQueryCmd(s),
		newToolsCmd(s),
		newWatchCmd(s),
		newConfigCmd(s),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexFolio %s\n", app.Version)
		},
	}
}

func newQuoteCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL [SYMBOL...]",
		Short: "Show the current quote for one or more symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			quotes := make([]*models.Quote, 0, len(args))
			for _, sym := range args {
				q, err := e.Market.CurrentQuote(cmd.Context(), sym)
				if err != nil {
					return err
				}
				quotes = append(quotes, q)
			}
			return s.print(cmd.OutOrStdout(), quotes, func(w io.Writer) { RenderQuotes(w, quotes) })
		},
	}
}

func newHistoryCmd(s *state) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show daily closes for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			if period == "" {
				period = e.Config.HistoryPeriod
			}
			series, err := e.Market.HistoricalSeries(cmd.Context(), args[0], period)
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), series, func(w io.Writer) { RenderSeries(w, series) })
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "History period: 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd")
	return cmd
}

func newProfileCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "profile SYMBOL",
		Short: "Show company information for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			p, err := e.Market.CompanyProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), p, func(w io.Writer) { RenderProfile(w, p) })
		},
	}
}

// newPortfolioCmd builds the risk, performance and holdings commands,
// which differ only in the analyzer call and the renderer.
func newPortfolioCmd(s *state, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:     name + " SYMBOL=QTY [SYMBOL=QTY...]",
		Short:   short,
		Example: "  cortexfolio " + name + " AAPL=10 MSFT=5 GOOGL=3",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePortfolio(args)
			if err != nil {
				return err
			}
			e, err := s.engine()
			if err != nil {
				return err
			}
			return runPortfolioCommand(cmd.Context(), s, e, name, p, cmd.OutOrStdout())
		},
	}
}

func runPortfolioCommand(ctx context.Context, s *state, e *app.Engine, name string, p models.Portfolio, w io.Writer) error {
	switch name {
	case "risk":
		m, err := e.Analyzer.Risk(ctx, p)
		if err != nil {
			return err
		}
		return s.print(w, m, func(w io.Writer) { RenderRisk(w, m) })
	case "performance":
		m, err := e.Analyzer.Performance(ctx, p)
		if err != nil {
			return err
		}
		return s.print(w, m, func(w io.Writer) { RenderPerformance(w, e.Analyzer.Benchmark(), m) })
	case "holdings":
		h, err := e.Analyzer.Holdings(ctx, p)
		if err != nil {
			return err
		}
		return s.print(w, h, func(w io.Writer) { RenderHoldings(w, h) })
	default:
		return fmt.Errorf("unknown portfolio command %q", name)
	}
}

func newReportCmd(s *state) *cobra.Command {
	var save, markdown bool
	cmd := &cobra.Command{
		Use:     "report SYMBOL=QTY [SYMBOL=QTY...]",
		Short:   "Run the full portfolio report: risk, performance and holdings",
		Example: "  cortexfolio report AAPL=10 MSFT=5 --save",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePortfolio(args)
			if err != nil {
				return err
			}
			e, err := s.engine()
			if err != nil {
				return err
			}
			report, err := e.Analyzer.Report(cmd.Context(), p)
			if err != nil {
				return err
			}
			if err := s.print(cmd.OutOrStdout(), report, func(w io.Writer) { RenderReport(w, report) }); err != nil {
				return err
			}
			if save {
				path, err := NewReportArchive(e.Config.DataDir).Save(report)
				if err != nil {
					return err
				}
				DisplaySuccess(cmd.ErrOrStderr(), "Report saved to "+path)
			}
			if markdown {
				path, err := NewReportArchive(e.Config.DataDir).SaveMarkdown(report)
				if err != nil {
					return err
				}
				DisplaySuccess(cmd.ErrOrStderr(), "Markdown written to "+path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save the report under the data directory")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Also write the report as markdown")
	return cmd
}

func newReportsCmd(s *state) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "List, show and delete saved portfolio reports",
	}

	archive := func() (*ReportArchive, error) {
		cfg, err := s.effectiveConfig()
		if err != nil {
			return nil, err
		}
		return NewReportArchive(cfg.DataDir), nil
	}

	reportsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive()
			if err != nil {
				return err
			}
			list, err := a.List()
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), list, func(w io.Writer) { RenderReportList(w, list) })
		},
	})
	reportsCmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive()
			if err != nil {
				return err
			}
			r, err := a.Load(args[0])
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), r, func(w io.Writer) { RenderReport(w, r) })
		},
	})
	reportsCmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive()
			if err != nil {
				return err
			}
			if err := a.Delete(args[0]); err != nil {
				return err
			}
			DisplaySuccess(cmd.OutOrStdout(), "Deleted "+args[0])
			return nil
		},
	})
	return reportsCmd
}

func newNewsCmd(s *state) *cobra.Command {
	newsCmd := &cobra.Command{
		Use:   "news",
		Short: "Fetch, store and list news articles",
	}

	var limit int
	headlines := &cobra.Command{
		Use:   "headlines KEYWORD",
		Short: "Show recent headlines with a sentiment score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			items, err := e.News.Headlines(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), items, func(w io.Writer) { RenderNews(w, args[0], items) })
		},
	}
	headlines.Flags().IntVar(&limit, "limit", 5, "Number of headlines")

	ingest := &cobra.Command{
		Use:   "ingest KEYWORD [KEYWORD...]",
		Short: "Fetch articles for each keyword and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			for _, kw := range args {
				res, err := e.News.Ingest(cmd.Context(), kw)
				if err != nil {
					return err
				}
				if err := s.print(cmd.OutOrStdout(), res, func(w io.Writer) {
					DisplaySuccess(w, fmt.Sprintf("%s: fetched %d, rejected %d, duplicates %d, stored %d",
						res.Keyword, res.Fetched, res.Rejected, res.Duplicates, res.Inserted))
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}

	var (
		source      string
		since       time.Duration
		maxArticles int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			f := storage.ArticleFilter{Source: source, Limit: maxArticles}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			articles, err := e.Store.ListArticles(cmd.Context(), f)
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), articles, func(w io.Writer) { RenderArticles(w, articles) })
		},
	}
	list.Flags().StringVar(&source, "source", "", "Only articles from this source name")
	list.Flags().DurationVar(&since, "since", 0, "Only articles published within this duration, e.g. 48h")
	list.Flags().IntVar(&maxArticles, "limit", 20, "Maximum number of articles")

	newsCmd.AddCommand(headlines, ingest, list)
	return newsCmd
}

func newQueryCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:     "query SQL",
		Short:   "Run a SQL statement against the article database",
		Example: `  cortexfolio query "SELECT source_name, COUNT(*) FROM articles GROUP BY source_name"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			tbl, err := e.Store.Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return s.print(cmd.OutOrStdout(), tbl, func(w io.Writer) { RenderTable(w, tbl) })
		},
	}
}

func newToolsCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed to chat models",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.engine()
			if err != nil {
				return err
			}
			var rows [][]string
			for _, t := range e.Tools.Tools() {
				info, err := t.Info(cmd.Context())
				if err != nil {
					return err
				}
				rows = append(rows, []string{info.Name, info.Desc})
			}
			return s.print(cmd.OutOrStdout(), rows, func(w io.Writer) {
				RenderTable(w, &storage.Table{Columns: []string{"name", "description"}, Rows: toAnyRows(rows)})
			})
		},
	}
}

func newWatchCmd(s *state) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch [SYMBOL=QTY...]",
		Short: "Keep the engine loaded and re-run the portfolio risk on an interval",
		Long: `watch loads the engine, starts the eino debug server when enabled and
rebuilds the engine every time config.json is edited. When holdings are
given, their risk metrics are recomputed every --interval with whichever
engine is current. Stop with Ctrl-C.`,
		Example: "  cortexfolio watch AAPL=10 MSFT=5 --interval 15m",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p models.Portfolio
			if len(args) > 0 {
				var err error
				if p, err = models.ParsePortfolio(args); err != nil {
					return err
				}
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}

			out := cmd.OutOrStdout()
			rt, err := s.runtime(true, app.WithNotifier(func(topic, payload string) {
				DisplayInfo(out, topic+" "+payload)
			}))
			if err != nil {
				return err
			}
			e := rt.Engine()

			dbg := debug.NewEinoDebugger(&e.Config, s.log)
			if err := dbg.Initialize(cmd.Context()); err != nil {
				return err
			}
			if dbg.IsEnabled() {
				DisplayInfo(out, "Eino debug UI at "+dbg.GetDebugURL())
			}
			DisplayInfo(out, "Watching "+s.mgr.Path())

			if len(p) == 0 {
				<-cmd.Context().Done()
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				watchRisk(cmd.Context(), rt, p, out)
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "How often to recompute the portfolio risk")
	return cmd
}

// watchRisk prints one risk snapshot. Failures are shown and the watch
// continues.
func watchRisk(ctx context.Context, rt *app.Runtime, p models.Portfolio, w io.Writer) {
	e := rt.Engine()
	if e == nil {
		return
	}
	m, err := e.Analyzer.Risk(ctx, p)
	if err != nil {
		if ctx.Err() == nil {
			DisplayError(w, err)
		}
		return
	}
	DisplayInfo(w, "Risk at "+time.Now().Format("15:04:05"))
	RenderRisk(w, m)
}

func newConfigCmd(s *state) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Show, validate and change the settings stored in config.json",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.effectiveConfig()
			if err != nil {
				return err
			}
			red := cfg.Redacted()
			return s.print(cmd.OutOrStdout(), red, func(w io.Writer) { RenderConfig(w, s.mgr.Path(), red) })
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and report missing credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := s.effectiveConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, warning := range configWarnings(cfg) {
				DisplayWarning(out, warning)
			}
			DisplaySuccess(out, "Configuration is valid")
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:     "set KEY=VALUE [KEY=VALUE...]",
		Short:   "Change settings in config.json",
		Example: "  cortexfolio config set benchmark_symbol=^NDX risk_free_rate=0.045",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := buildPatch(args)
			if err != nil {
				return err
			}
			mgr, err := s.manager()
			if err != nil {
				return err
			}
			if err := mgr.Patch(patch); err != nil {
				return err
			}
			DisplaySuccess(cmd.OutOrStdout(), "Updated "+mgr.Path())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the location of config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := s.manager()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Path())
			return nil
		},
	})

	return configCmd
}

// buildPatch turns KEY=VALUE pairs into a JSON object. Values that parse
// as JSON (numbers, booleans, quoted strings) keep their type; anything
// else is taken as a string.
func buildPatch(pairs []string) (string, error) {
	patch := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return "", fmt.Errorf("setting %q: expected KEY=VALUE", pair)
		}
		if json.Valid([]byte(val)) && val != "" {
			patch[key] = json.RawMessage(val)
			continue
		}
		raw, _ := json.Marshal(val)
		patch[key] = raw
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *state) print(w io.Writer, v any, render func(io.Writer)) error {
	if !s.jsonOut {
		render(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toAnyRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = make([]any, len(r))
		for j, v := range r {
			out[i][j] = v
		}
	}
	return out
}

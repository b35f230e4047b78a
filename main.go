package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := newServeCmd(&configPath)
	root := &cobra.Command{
		Use:          "dashboard",
		Short:        "Personal dashboard: AI chat, stock watchlist and AI news",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newQuoteCmd(&configPath),
		newNewsCmd(&configPath),
		newSuggestCmd(),
	)
	return root
}

func loadConfigAndLogger(path string) (*Config, *slog.Logger, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, NewLogger(cfg.Logging.Level, cfg.Logging.Format), nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var (
		port        int
		noScheduler bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if noScheduler {
				cfg.Scheduler.Enabled = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "disable the daily watchlist sync")
	return cmd
}

func runServer(ctx context.Context, cfg *Config, log *slog.Logger) error {
	log.Info("=== Personal Dashboard ===",
		"database", cfg.DatabasePath(),
		"state", cfg.StatePath(),
		"port", cfg.Server.Port)

	db, err := NewDatabase(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.SeedWatchlist(cfg.Market.DefaultWatchlist); err != nil {
		log.Warn("seeding watchlist", "error", err)
	}

	market := NewMarketDataClient(NewYahooFinanceClient(cfg.Market.BaseURL), db, cfg.Market.CacheTTL, log)

	var scheduler *Scheduler
	if cfg.Scheduler.Enabled {
		collector := NewStockCollector(db, market, cfg.Market.SnapshotDays, log)
		scheduler, err = NewScheduler(collector, cfg.Scheduler, log)
		if err != nil {
			log.Warn("failed to initialize scheduler", "error", err)
		} else if err := scheduler.Start(); err != nil {
			log.Warn("failed to start scheduler", "error", err)
			scheduler = nil
		} else {
			defer scheduler.Stop()
		}
	}

	session := NewSession(SessionDeps{
		Chats:        NewChatManager(cfg.StatePath(), log),
		Watchlist:    NewWatchlist(db, market, NewStockSymbolMatcher(), log),
		Market:       market,
		News:         NewNewsAggregatorFromConfig(cfg.News, log),
		Assistant:    NewAssistantFromConfig(ctx, cfg.LLM, log),
		Recommender:  NewRecommender(nil),
		Database:     db,
		Scheduler:    scheduler,
		RefreshEvery: cfg.Market.AutoRefreshEvery,
	}, log)

	gin.SetMode(gin.ReleaseMode)
	server := NewWebServer(session, log)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return server.Run(ctx, addr)
}

func newQuoteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL...",
		Short: "Print quotes for one or more symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			market := NewMarketDataClient(NewYahooFinanceClient(cfg.Market.BaseURL), nil, cfg.Market.CacheTTL, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			rows := make([]QuoteRow, 0, len(args))
			for _, sym := range args {
				q, err := market.GetQuote(ctx, sym)
				rows = append(rows, QuoteRow{Symbol: sym, Quote: q, Err: err})
			}
			RenderQuotes(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newNewsCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Print the latest AI news",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			agg := NewNewsAggregatorFromConfig(cfg.News, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			items := agg.GetNews(ctx)
			if limit > 0 && limit < len(items) {
				items = items[:limit]
			}
			RenderNews(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of items to show")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest QUERY",
		Short: "Suggest ticker symbols for a company name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			RenderSuggestions(cmd.OutOrStdout(), NewStockSymbolMatcher(), args[0])
			return nil
		},
	}
}

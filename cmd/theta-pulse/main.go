package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/theta-pulse/internal/api"
	"github.com/rickgao/theta-pulse/internal/chain"
	"github.com/rickgao/theta-pulse/internal/config"
	"github.com/rickgao/theta-pulse/internal/dashboard"
	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/kvstore"
	"github.com/rickgao/theta-pulse/internal/pricefeed"
	"github.com/rickgao/theta-pulse/internal/server"
	"github.com/rickgao/theta-pulse/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/theta-pulse.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional .env file loaded before the config")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting theta-pulse",
		"version", version.String(),
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("theta-pulse failed", "error", err)
		os.Exit(1)
	}
	logger.Info("theta-pulse stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Storage
	logger.Info("opening storage", "driver", cfg.Storage.Driver)
	store, err := kvstore.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	hist := history.NewStore(store,
		history.WithCapacity(cfg.History.Capacity),
		history.WithEpsilon(cfg.History.Epsilon),
		history.WithLogger(logger),
	)

	// REST client and dashboard
	client := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxAttempts, cfg.API.RetryDelay),
		api.WithAPIKeyHeader(cfg.API.APIKeyHeader),
		api.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	)

	dash := dashboard.New(dashboard.Config{
		VsCurrency:       cfg.Refresh.VsCurrency,
		Category:         cfg.Refresh.Category,
		PerPage:          cfg.Refresh.PerPage,
		MarketsInterval:  cfg.Refresh.MarketsInterval,
		TrendingInterval: cfg.Refresh.TrendingInterval,
		GlobalInterval:   cfg.Refresh.GlobalInterval,
		Timeout:          cfg.Refresh.Timeout,
	}, client, logger)

	// Price feeds
	feeds := pricefeed.NewService(hist, logger)

	var eth *ethclient.Client
	if len(cfg.Feeds) > 0 {
		logger.Info("connecting to rpc", "url", cfg.Chain.RPCURL)
		eth, err = chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return err
		}
		defer eth.Close()

		newPool := func(fc config.FeedConfig) pricefeed.Source {
			return chain.NewPool(
				chain.NewPair(common.HexToAddress(fc.PairAddress), eth),
				common.HexToAddress(fc.TrackedToken),
				chain.WithDecimals(fc.Decimals0, fc.Decimals1),
				chain.WithRetries(cfg.Chain.MaxAttempts, cfg.Chain.RetryDelay),
				chain.WithLogger(logger),
			)
		}
		if err := registerFeeds(ctx, cfg, newPool, feeds, logger); err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return errors.Join(err, feeds.Shutdown(shutdownCtx))
		}
	}

	news := api.NewNewsClient(
		cfg.News.RestURL,
		cfg.News.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.News.Timeout),
	)
	if cfg.News.APIKey == "" {
		logger.Warn("news api key not set, /api/news will answer 500")
	}

	// HTTP API
	opts := []server.Option{
		server.WithNews(news, api.NewsOptions{Query: cfg.News.Query, Language: cfg.News.Language}),
	}
	if p, ok := store.(kvstore.Pinger); ok {
		opts = append(opts, server.WithHealthCheck("storage", p.Ping))
	}
	if eth != nil {
		opts = append(opts, server.WithHealthCheck("rpc", func(ctx context.Context) error {
			_, err := eth.BlockNumber(ctx)
			return err
		}))
	}
	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		MetricsPath: cfg.Metrics.Path,
		VsCurrency:  cfg.Refresh.VsCurrency,
	}, dash, feeds, client, logger, opts...)

	if err := dash.Start(ctx); err != nil {
		return fmt.Errorf("start dashboard: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			dash.Stop(shutdownCtx),
			feeds.Shutdown(shutdownCtx),
		)
	})

	logger.Info("theta-pulse running",
		"port", cfg.Server.Port,
		"feeds", len(cfg.Feeds),
		"storage", cfg.Storage.Driver,
	)

	return g.Wait()
}

// registerFeeds creates one feed per configured pair and keeps it recording
// history whether or not anyone is subscribed. Every feed is registered
// before any is started, so a bad entry leaves nothing running.
func registerFeeds(ctx context.Context, cfg *config.Config, newSource func(config.FeedConfig) pricefeed.Source, feeds *pricefeed.Service, logger *slog.Logger) error {
	registered := make([]*pricefeed.Feed, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		feed, err := feeds.Register(ctx, pricefeed.Config{
			Name:        fc.Name,
			Interval:    fc.Interval,
			ReadTimeout: cfg.Chain.Timeout,
			HistoryKey:  fc.HistoryKey,
		}, newSource(fc))
		if err != nil {
			return fmt.Errorf("register feed %s: %w", fc.Name, err)
		}
		registered = append(registered, feed)
	}

	for _, feed := range registered {
		if latest, ok := feed.Latest(); ok {
			logger.Info("last known price", "feed", feed.Name(), "price", latest.Value, "at", latest.Time())
		}

		if _, err := feed.Subscribe(logPrices(logger, feed.Name())); err != nil {
			return err
		}
		if err := feed.Start(); err != nil {
			return err
		}
	}
	return nil
}

// logPrices returns a listener that logs every feed event.
func logPrices(logger *slog.Logger, name string) pricefeed.Listener {
	return func(ev pricefeed.Event) {
		if ev.Err != nil {
			logger.Warn("price unavailable", "feed", name, "state", ev.State, "err", ev.Err)
			return
		}
		logger.Debug("price", "feed", name, "price", ev.Sample.Value)
	}
}

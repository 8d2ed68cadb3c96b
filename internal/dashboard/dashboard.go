package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/theta-pulse/internal/api"
	"github.com/rickgao/theta-pulse/internal/model"
	"github.com/rickgao/theta-pulse/internal/poller"
)

// Source provides dashboard data. *api.Client satisfies it.
type Source interface {
	GetMarkets(ctx context.Context, opts api.MarketsOptions) ([]api.MarketCoin, error)
	GetTrending(ctx context.Context) ([]api.TrendingItem, error)
	GetGlobal(ctx context.Context) (*api.GlobalData, error)
}

// Config holds dashboard configuration.
type Config struct {
	VsCurrency       string
	Category         string
	PerPage          int
	MarketsInterval  time.Duration
	TrendingInterval time.Duration
	GlobalInterval   time.Duration
	Timeout          time.Duration // Per-refresh timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		VsCurrency:       "usd",
		Category:         "theta-ecosystem",
		PerPage:          100,
		MarketsInterval:  30 * time.Second,
		TrendingInterval: 30 * time.Second,
		GlobalInterval:   30 * time.Second,
		Timeout:          20 * time.Second,
	}
}

// Dashboard owns the refresh pollers.
type Dashboard struct {
	cfg    Config
	src    Source
	logger *slog.Logger

	markets  *poller.Poller[[]model.Market]
	trending *poller.Poller[[]model.TrendingCoin]
	global   *poller.Poller[model.GlobalStats]
}

// New creates a new Dashboard.
func New(cfg Config, src Source, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dashboard{cfg: cfg, src: src, logger: logger}

	d.markets = poller.New(poller.Config{
		Name:     "markets",
		Interval: cfg.MarketsInterval,
		Timeout:  cfg.Timeout,
	}, d.fetchMarkets, logger)

	d.trending = poller.New(poller.Config{
		Name:     "trending",
		Interval: cfg.TrendingInterval,
		Timeout:  cfg.Timeout,
	}, d.fetchTrending, logger)

	d.global = poller.New(poller.Config{
		Name:     "global",
		Interval: cfg.GlobalInterval,
		Timeout:  cfg.Timeout,
	}, d.fetchGlobal, logger)

	return d
}

// Start begins refreshing every surface. Each surface is fetched immediately.
func (d *Dashboard) Start(ctx context.Context) error {
	for _, start := range []func(context.Context) error{d.markets.Start, d.trending.Start, d.global.Start} {
		if err := start(ctx); err != nil {
			return err
		}
	}

	d.logger.Info("dashboard started",
		"category", d.cfg.Category,
		"vs_currency", d.cfg.VsCurrency,
	)
	return nil
}

// Stop stops all pollers and waits for in-flight refreshes.
func (d *Dashboard) Stop(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.markets.Stop(ctx) })
	g.Go(func() error { return d.trending.Stop(ctx) })
	g.Go(func() error { return d.global.Stop(ctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	d.logger.Info("dashboard stopped")
	return nil
}

func (d *Dashboard) fetchMarkets(ctx context.Context) ([]model.Market, error) {
	coins, err := d.src.GetMarkets(ctx, api.MarketsOptions{
		VsCurrency: d.cfg.VsCurrency,
		Category:   d.cfg.Category,
		PerPage:    d.cfg.PerPage,
		Sparkline:  true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Market, 0, len(coins))
	for _, c := range coins {
		out = append(out, c.ToModel())
	}
	return out, nil
}

func (d *Dashboard) fetchTrending(ctx context.Context) ([]model.TrendingCoin, error) {
	items, err := d.src.GetTrending(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.TrendingCoin, 0, len(items))
	for i, it := range items {
		out = append(out, it.ToModel(i))
	}
	return out, nil
}

func (d *Dashboard) fetchGlobal(ctx context.Context) (model.GlobalStats, error) {
	g, err := d.src.GetGlobal(ctx)
	if err != nil {
		return model.GlobalStats{}, err
	}
	return g.ToModel(d.cfg.VsCurrency), nil
}

// Markets returns the market table view.
func (d *Dashboard) Markets() View[[]model.Market] {
	return viewOf(d.markets.State())
}

// Trending returns the trending list view.
func (d *Dashboard) Trending() View[[]model.TrendingCoin] {
	return viewOf(d.trending.State())
}

// Global returns the global stats view.
func (d *Dashboard) Global() View[model.GlobalStats] {
	return viewOf(d.global.State())
}

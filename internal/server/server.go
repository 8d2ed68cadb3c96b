package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/theta-pulse/internal/api"
	"github.com/rickgao/theta-pulse/internal/dashboard"
	"github.com/rickgao/theta-pulse/internal/metrics"
	"github.com/rickgao/theta-pulse/internal/model"
	"github.com/rickgao/theta-pulse/internal/pricefeed"
)

// Dashboard provides the refreshed dashboard views.
type Dashboard interface {
	Markets() dashboard.View[[]model.Market]
	Trending() dashboard.View[[]model.TrendingCoin]
	Global() dashboard.View[model.GlobalStats]
}

// CoinSource serves on-demand coin lookups. *api.Client satisfies it.
type CoinSource interface {
	GetCoin(ctx context.Context, id string) (*api.CoinResponse, error)
	GetOHLC(ctx context.Context, id, vsCurrency, days string) ([]model.Candle, error)
}

// NewsSource serves news articles. *api.Client built by api.NewNewsClient
// satisfies it.
type NewsSource interface {
	GetNews(ctx context.Context, opts api.NewsOptions) (*api.NewsResponse, error)
}

// Config holds server configuration.
type Config struct {
	Port        int
	MetricsPath string
	VsCurrency  string
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	dash   Dashboard
	feeds  *pricefeed.Service
	coins  CoinSource
	logger *slog.Logger

	news     NewsSource
	newsOpts api.NewsOptions

	checks []healthCheck

	router *mux.Router
	http   *http.Server
}

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a dependency check reported by /health. A failing
// check makes /health answer 503.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.checks = append(s.checks, healthCheck{name: name, check: check})
	}
}

// WithNews serves /api/news from src with the given query defaults.
func WithNews(src NewsSource, opts api.NewsOptions) Option {
	return func(s *Server) {
		s.news = src
		s.newsOpts = opts
	}
}

// New creates a Server and registers its routes.
func New(cfg Config, dash Dashboard, feeds *pricefeed.Service, coins CoinSource, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}

	s := &Server{
		cfg:    cfg,
		dash:   dash,
		feeds:  feeds,
		coins:  coins,
		logger: logger,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(instrument)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle(s.cfg.MetricsPath, metrics.Handler()).Methods("GET")

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/markets", s.handleMarkets).Methods("GET")
	a.HandleFunc("/trending", s.handleTrending).Methods("GET")
	a.HandleFunc("/global", s.handleGlobal).Methods("GET")
	a.HandleFunc("/news", s.handleNews).Methods("GET")
	a.HandleFunc("/coins/{id}", s.handleCoin).Methods("GET")
	a.HandleFunc("/coins/{id}/ohlc", s.handleOHLC).Methods("GET")
	a.HandleFunc("/ohlc", s.handleOHLC).Methods("GET")
	a.HandleFunc("/feeds", s.handleListFeeds).Methods("GET")
	a.HandleFunc("/feeds/{name}", s.handleGetFeed).Methods("GET")
	a.HandleFunc("/feeds/{name}/history", s.handleFeedHistory).Methods("GET")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// instrument records request metrics labelled by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

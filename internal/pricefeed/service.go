package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/theta-pulse/internal/history"
)

// Service owns a set of named feeds.
type Service struct {
	history *history.Store
	logger  *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	feeds  map[string]*Feed
	closed bool
}

// NewService creates a Service whose feeds record samples in h.
func NewService(h *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		history: h,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		feeds:   make(map[string]*Feed),
	}
}

// Register adds a feed reading from src and restores its persisted history.
func (s *Service) Register(ctx context.Context, cfg Config, src Source) (*Feed, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.HistoryKey == "" {
		cfg.HistoryKey = cfg.Name + "_price_history"
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShutdown
	}
	if _, ok := s.feeds[cfg.Name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("register %q: %w", cfg.Name, ErrFeedExists)
	}
	f := newFeed(s.base, cfg, src, s.history, s.logger)
	s.feeds[cfg.Name] = f
	s.mu.Unlock()

	f.restore(ctx)

	s.logger.Info("feed registered",
		"feed", cfg.Name,
		"interval", cfg.Interval,
		"history_key", cfg.HistoryKey,
	)
	return f, nil
}

// Feed returns the feed registered under name.
func (s *Service) Feed(name string) (*Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrFeedNotFound)
	}
	return f, nil
}

// Feeds returns all feeds sorted by name.
func (s *Service) Feeds() []*Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Feed, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Subscribe subscribes l to the named feed.
func (s *Service) Subscribe(name string, l Listener) (func(), error) {
	f, err := s.Feed(name)
	if err != nil {
		return nil, err
	}
	return f.Subscribe(l)
}

// Shutdown destroys every subscription, stops all sessions and waits for
// in-flight reads to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	feeds := make([]*Feed, 0, len(s.feeds))
	for _, f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		f.close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		for _, f := range feeds {
			f.wait()
		}
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("price feed service stopped", "feeds", len(feeds))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

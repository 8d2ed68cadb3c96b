package main

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/theta-pulse/internal/config"
	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/kvstore"
	"github.com/rickgao/theta-pulse/internal/pricefeed"
)

func TestRegisterFeeds(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	newService := func(t *testing.T) *pricefeed.Service {
		svc := pricefeed.NewService(history.NewStore(kvstore.NewMemory()), nil)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			svc.Shutdown(ctx)
		})
		return svc
	}

	t.Run("bad entry leaves nothing running", func(t *testing.T) {
		var calls atomic.Int32
		newSource := func(config.FeedConfig) pricefeed.Source {
			return pricefeed.SourceFunc(func(ctx context.Context) (float64, error) {
				calls.Add(1)
				return 1, nil
			})
		}

		cfg := &config.Config{Feeds: []config.FeedConfig{
			{Name: "wtfuel", Interval: time.Millisecond, HistoryKey: "a"},
			{Name: "wtfuel", Interval: time.Millisecond, HistoryKey: "b"},
		}}
		svc := newService(t)

		err := registerFeeds(context.Background(), cfg, newSource, svc, discard)
		require.ErrorIs(t, err, pricefeed.ErrFeedExists)

		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, calls.Load())
		f, err := svc.Feed("wtfuel")
		require.NoError(t, err)
		assert.Equal(t, pricefeed.StateIdle, f.State())
	})

	t.Run("starts every feed", func(t *testing.T) {
		newSource := func(config.FeedConfig) pricefeed.Source {
			return pricefeed.SourceFunc(func(ctx context.Context) (float64, error) { return 1, nil })
		}
		cfg := &config.Config{Feeds: []config.FeedConfig{
			{Name: "a", Interval: time.Hour, HistoryKey: "a_price_history"},
			{Name: "b", Interval: time.Hour, HistoryKey: "b_price_history"},
		}}
		svc := newService(t)

		require.NoError(t, registerFeeds(context.Background(), cfg, newSource, svc, discard))
		for _, f := range svc.Feeds() {
			require.Eventually(t, func() bool { return f.State() == pricefeed.StateStreaming }, time.Second, time.Millisecond)
		}
	})
}

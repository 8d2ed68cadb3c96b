package pricefeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/kvstore"
)

func TestService_Registry(t *testing.T) {
	svc, _ := newTestService(t)

	f, err := svc.Register(context.Background(), Config{Name: "b"}, &countingSource{})
	require.NoError(t, err)
	assert.Equal(t, "b", f.Name())

	_, err = svc.Register(context.Background(), Config{Name: "a"}, &countingSource{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), Config{Name: "a"}, &countingSource{})
	assert.ErrorIs(t, err, ErrFeedExists)

	got, err := svc.Feed("b")
	require.NoError(t, err)
	assert.Same(t, f, got)

	_, err = svc.Feed("missing")
	assert.ErrorIs(t, err, ErrFeedNotFound)

	_, err = svc.Subscribe("missing", func(Event) {})
	assert.ErrorIs(t, err, ErrFeedNotFound)

	feeds := svc.Feeds()
	require.Len(t, feeds, 2)
	assert.Equal(t, "a", feeds[0].Name())
	assert.Equal(t, "b", feeds[1].Name())
}

func TestService_RegisterDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	f, err := svc.Register(context.Background(), Config{Name: "wtfuel"}, &countingSource{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, f.cfg.Interval)
	assert.Equal(t, "wtfuel_price_history", f.cfg.HistoryKey)
}

func TestService_Shutdown(t *testing.T) {
	svc := NewService(history.NewStore(kvstore.NewMemory()), nil)
	src := &countingSource{}
	_, err := svc.Register(context.Background(), Config{Name: "wtfuel", Interval: 5 * time.Millisecond}, src)
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := svc.Subscribe("wtfuel", rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() >= 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	delivered := rec.len()
	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, delivered, rec.len())
	assert.Equal(t, calls, src.calls.Load())

	unsub() // safe after shutdown

	_, err = svc.Subscribe("wtfuel", func(Event) {})
	assert.ErrorIs(t, err, ErrShutdown)
	_, err = svc.Register(context.Background(), Config{Name: "other"}, src)
	assert.ErrorIs(t, err, ErrShutdown)
}

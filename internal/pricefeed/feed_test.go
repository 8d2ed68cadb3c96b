package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/kvstore"
	"github.com/rickgao/theta-pulse/internal/model"
)

// countingSource returns 1, 2, 3... and counts calls.
type countingSource struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	fail     func(call int32) error
}

func (s *countingSource) Price(ctx context.Context) (float64, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)

	n := s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail != nil {
		if err := s.fail(n); err != nil {
			return 0, err
		}
	}
	return float64(n), nil
}

// recorder collects events delivered to one listener.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestService(t *testing.T) (*Service, kvstore.Store) {
	t.Helper()
	kv := kvstore.NewMemory()
	svc := NewService(history.NewStore(kv), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc, kv
}

func register(t *testing.T, svc *Service, interval time.Duration, src Source) *Feed {
	t.Helper()
	f, err := svc.Register(context.Background(), Config{Name: "wtfuel", Interval: interval}, src)
	require.NoError(t, err)
	return f
}

func TestFeed_ImmediateFirstRead(t *testing.T) {
	svc, _ := newTestService(t)
	src := &countingSource{}
	f := register(t, svc, time.Hour, src)

	assert.Equal(t, StateIdle, f.State())

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)

	ev := rec.all()[0]
	assert.NoError(t, ev.Err)
	assert.Equal(t, 1.0, ev.Sample.Value)
	assert.Equal(t, StateStreaming, ev.State)
	assert.Equal(t, StateStreaming, f.State())
}

func TestFeed_SingleReadPerStep(t *testing.T) {
	svc, _ := newTestService(t)
	src := &countingSource{}
	f := register(t, svc, time.Hour, src)

	recs := []*recorder{{}, {}, {}}
	for _, rec := range recs {
		unsub, err := f.Subscribe(rec.listen)
		require.NoError(t, err)
		defer unsub()
	}

	require.Eventually(t, func() bool {
		for _, rec := range recs {
			if rec.len() != 1 {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	assert.Equal(t, int32(1), src.calls.Load())
	for _, rec := range recs {
		assert.Equal(t, 1.0, rec.all()[0].Sample.Value)
	}
}

func TestFeed_ErrorIsNotTerminal(t *testing.T) {
	errRPC := errors.New("rpc down")
	svc, _ := newTestService(t)
	src := &countingSource{fail: func(n int32) error {
		if n == 1 {
			return errRPC
		}
		return nil
	}}
	f := register(t, svc, 5*time.Millisecond, src)

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return rec.len() >= 2 }, time.Second, time.Millisecond)

	events := rec.all()
	assert.ErrorIs(t, events[0].Err, errRPC)
	assert.Equal(t, StateError, events[0].State)
	assert.Zero(t, events[0].Sample)

	assert.NoError(t, events[1].Err)
	assert.Equal(t, StateStreaming, events[1].State)
	assert.Equal(t, 2.0, events[1].Sample.Value)

	assert.Empty(t, f.Status().LastError)
}

func TestFeed_ReadsNeverOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	src := &countingSource{delay: 3 * time.Millisecond}
	f := register(t, svc, time.Millisecond, src)

	unsub, err := f.Subscribe(func(Event) {})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	unsub()

	assert.False(t, src.overlap.Load())
	assert.Greater(t, src.calls.Load(), int32(2))
}

func TestFeed_UnsubscribeDuringBroadcast(t *testing.T) {
	svc, _ := newTestService(t)
	f := register(t, svc, 5*time.Millisecond, &countingSource{})

	var (
		victimUnsub  func()
		unsubscribed atomic.Bool
		lateVictim   atomic.Int32
		once         sync.Once
	)

	victim := func(Event) {
		if unsubscribed.Load() {
			lateVictim.Add(1)
		}
	}

	// Whichever other listener runs first removes the victim mid-broadcast.
	killer := func(Event) {
		once.Do(func() {
			victimUnsub()
			unsubscribed.Store(true)
		})
	}

	var err error
	victimUnsub, err = f.Subscribe(victim)
	require.NoError(t, err)

	others := []*recorder{{}, {}}
	for _, rec := range others {
		rec := rec
		unsub, err := f.Subscribe(func(ev Event) {
			killer(ev)
			rec.listen(ev)
		})
		require.NoError(t, err)
		defer unsub()
	}

	require.Eventually(t, func() bool {
		return others[0].len() >= 3 && others[1].len() >= 3
	}, 2*time.Second, time.Millisecond)

	assert.True(t, unsubscribed.Load())
	assert.Zero(t, lateVictim.Load())
	assert.Equal(t, StateStreaming, f.State())
}

func TestFeed_SelfUnsubscribe(t *testing.T) {
	svc, _ := newTestService(t)
	f := register(t, svc, 5*time.Millisecond, &countingSource{})

	var selfCount atomic.Int32
	var selfUnsub func()
	var mu sync.Mutex
	mu.Lock()
	selfUnsub, err := f.Subscribe(func(Event) {
		selfCount.Add(1)
		mu.Lock()
		defer mu.Unlock()
		selfUnsub()
	})
	require.NoError(t, err)
	mu.Unlock()

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return rec.len() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), selfCount.Load())
}

func TestFeed_UnsubscribeFromOtherGoroutine(t *testing.T) {
	svc, _ := newTestService(t)
	f := register(t, svc, 2*time.Millisecond, &countingSource{})

	keeper := &recorder{}
	unsubKeeper, err := f.Subscribe(keeper.listen)
	require.NoError(t, err)
	defer unsubKeeper()

	victim := &recorder{}
	unsubVictim, err := f.Subscribe(victim.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return victim.len() >= 2 }, time.Second, time.Millisecond)

	unsubVictim()
	atReturn := victim.len()
	seen := keeper.len()
	require.Eventually(t, func() bool { return keeper.len() >= seen+3 }, time.Second, time.Millisecond)

	// At most the delivery already under way when unsubscribe returned.
	assert.LessOrEqual(t, victim.len(), atReturn+1)
}

func TestFeed_LastUnsubscribeTearsDown(t *testing.T) {
	svc, _ := newTestService(t)
	src := &countingSource{}
	f := register(t, svc, 5*time.Millisecond, src)

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() >= 2 }, time.Second, time.Millisecond)

	unsub()
	unsub() // idempotent
	assert.Equal(t, StateIdle, f.State())

	// Let any in-flight read settle, then verify polling stopped.
	time.Sleep(20 * time.Millisecond)
	calls := src.calls.Load()
	delivered := rec.len()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())
	assert.Equal(t, delivered, rec.len())

	// A fresh subscription restarts with an immediate read.
	rec2 := &recorder{}
	unsub2, err := f.Subscribe(rec2.listen)
	require.NoError(t, err)
	defer unsub2()
	require.Eventually(t, func() bool { return rec2.len() >= 1 }, time.Second, time.Millisecond)
	assert.Greater(t, src.calls.Load(), calls)
}

func TestFeed_InFlightReadDiscardedAfterTeardown(t *testing.T) {
	svc, kv := newTestService(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	src := SourceFunc(func(ctx context.Context) (float64, error) {
		close(entered)
		<-release
		return 0.5, nil
	})
	f := register(t, svc, time.Hour, src)

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)

	<-entered
	assert.Equal(t, StateConnecting, f.State())
	unsub()
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.len())
	assert.Empty(t, f.History())
	_, err = kv.Get(context.Background(), "wtfuel_price_history")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestFeed_ResubscribeWaitsForPreviousRead(t *testing.T) {
	svc, _ := newTestService(t)

	var calls, inFlight, maxInFlight atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	src := SourceFunc(func(ctx context.Context) (float64, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}

		// The first read ignores ctx and outlives its session.
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return 0.5, nil
	})
	f := register(t, svc, time.Hour, src)

	unsub, err := f.Subscribe(func(Event) {})
	require.NoError(t, err)
	<-entered
	unsub()

	rec := &recorder{}
	unsub2, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	defer unsub2()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "new session read while the old one was in flight")
	assert.Zero(t, rec.len())

	close(release)
	require.Eventually(t, func() bool { return rec.len() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestFeed_AppendsToHistoryWithDedup(t *testing.T) {
	svc, kv := newTestService(t)

	var calls atomic.Int32
	values := []float64{0.95, 0.95, 0.96, 0.96, 0.97}
	src := SourceFunc(func(ctx context.Context) (float64, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(values) {
			n = len(values) - 1
		}
		return values[n], nil
	})
	f := register(t, svc, time.Millisecond, src)

	rec := &recorder{}
	unsub, err := f.Subscribe(rec.listen)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() >= len(values) }, 2*time.Second, time.Millisecond)
	unsub()

	got := f.History()
	require.Len(t, got, 3)
	assert.Equal(t, 0.95, got[0].Value)
	assert.Equal(t, 0.96, got[1].Value)
	assert.Equal(t, 0.97, got[2].Value)

	// Every read is still broadcast even when history drops it.
	assert.GreaterOrEqual(t, rec.len(), len(values))

	data, err := kv.Get(context.Background(), "wtfuel_price_history")
	require.NoError(t, err)
	var persisted []model.Sample
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, got, persisted)
}

func TestFeed_RestoresLatestFromHistory(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(context.Background(), "wtfuel_price_history",
		[]byte(`[{"timestamp":1,"price":0.5},{"timestamp":2,"price":0.6}]`)))

	svc := NewService(history.NewStore(kv), nil)
	defer svc.Shutdown(context.Background())

	f, err := svc.Register(context.Background(), Config{Name: "wtfuel", Interval: time.Hour}, &countingSource{})
	require.NoError(t, err)

	latest, ok := f.Latest()
	require.True(t, ok)
	assert.Equal(t, model.Sample{Timestamp: 2, Value: 0.6}, latest)
	assert.Equal(t, StateIdle, f.State())
	assert.Len(t, f.History(), 2)

	status := f.Status()
	require.NotNil(t, status.Latest)
	assert.Equal(t, 0.6, status.Latest.Value)
}

func TestFeed_StartWithoutSubscribers(t *testing.T) {
	svc, _ := newTestService(t)
	src := &countingSource{}
	f := register(t, svc, 5*time.Millisecond, src)

	require.NoError(t, f.Start())
	require.Eventually(t, func() bool { return len(f.History()) >= 2 }, time.Second, time.Millisecond)

	// Subscribers coming and going do not stop a started feed.
	unsub, err := f.Subscribe(func(Event) {})
	require.NoError(t, err)
	unsub()
	assert.NotEqual(t, StateIdle, f.State())

	f.Stop()
	assert.Equal(t, StateIdle, f.State())
}

func TestFeed_SubscribeChan(t *testing.T) {
	svc, _ := newTestService(t)
	f := register(t, svc, time.Hour, &countingSource{})

	ch, unsub, err := f.SubscribeChan(4)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, 1.0, ev.Sample.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	unsub()
	_, open := <-ch
	assert.False(t, open)
}

package pricefeed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/metrics"
	"github.com/rickgao/theta-pulse/internal/model"
)

// Feed polls one Source and fans each result out to its subscribers.
type Feed struct {
	cfg     Config
	source  Source
	history *history.Store
	logger  *slog.Logger
	now     func() time.Time

	// base bounds every session; cancelled on service shutdown.
	base context.Context

	mu        sync.Mutex
	state     State
	subs      map[uuid.UUID]*subscription
	session   *session
	lastDone  chan struct{} // closed when the newest session's goroutine exits
	pinned    bool          // kept running by Start without subscribers
	closed    bool
	latest    model.Sample
	hasLatest bool
	lastErr   error
	reads     int64

	// commitMu serializes history appends and broadcasts across sessions.
	commitMu sync.Mutex
	wg       sync.WaitGroup
}

type subscription struct {
	id       uuid.UUID
	listener Listener
	active   atomic.Bool
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newFeed(base context.Context, cfg Config, source Source, h *history.Store, logger *slog.Logger) *Feed {
	return &Feed{
		cfg:     cfg,
		source:  source,
		history: h,
		logger:  logger.With("feed", cfg.Name),
		now:     time.Now,
		base:    base,
		subs:    make(map[uuid.UUID]*subscription),
	}
}

// Name returns the feed name.
func (f *Feed) Name() string {
	return f.cfg.Name
}

// restore exposes the last persisted sample before the first read.
func (f *Feed) restore(ctx context.Context) {
	samples := f.history.Load(ctx, f.cfg.HistoryKey)
	if len(samples) == 0 {
		return
	}

	f.mu.Lock()
	f.latest = samples[len(samples)-1]
	f.hasLatest = true
	f.mu.Unlock()

	metrics.SetFeedPrice(f.cfg.Name, f.latest.Value)
	f.logger.Info("restored history", "samples", len(samples), "last", f.latest.Value)
}

// Subscribe registers l and returns a function that removes it. The first
// subscriber starts the polling session; removing the last one stops it.
// The returned function is idempotent. After it returns, no broadcast that
// starts later reaches l; a delivery already under way on another goroutine
// may still complete. SubscribeChan closes its channel only after that.
func (f *Feed) Subscribe(l Listener) (unsubscribe func(), err error) {
	sub := &subscription{id: uuid.New(), listener: l}
	sub.active.Store(true)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrShutdown
	}
	f.subs[sub.id] = sub
	n := len(f.subs)
	if f.session == nil {
		f.startLocked()
	}
	f.mu.Unlock()

	metrics.SetFeedSubscribers(f.cfg.Name, n)
	f.logger.Debug("subscribed", "id", sub.id, "subscribers", n)

	var once sync.Once
	return func() {
		once.Do(func() { f.unsubscribe(sub) })
	}, nil
}

// SubscribeChan delivers events on a channel with the given buffer. Events
// that do not fit are dropped. The channel is closed by unsubscribe.
func (f *Feed) SubscribeChan(buffer int) (<-chan Event, func(), error) {
	ch := make(chan Event, buffer)
	var mu sync.Mutex
	closed := false

	unsub, err := f.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			f.logger.Debug("subscriber channel full, dropping event")
		}
	})
	if err != nil {
		return nil, nil, err
	}

	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}, nil
}

func (f *Feed) unsubscribe(sub *subscription) {
	sub.active.Store(false)

	f.mu.Lock()
	delete(f.subs, sub.id)
	n := len(f.subs)
	if n == 0 && !f.pinned && f.session != nil {
		f.stopLocked()
	}
	f.mu.Unlock()

	metrics.SetFeedSubscribers(f.cfg.Name, n)
	f.logger.Debug("unsubscribed", "id", sub.id, "subscribers", n)
}

// Start runs the polling session even without subscribers.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrShutdown
	}
	f.pinned = true
	if f.session == nil {
		f.startLocked()
	}
	return nil
}

// Stop undoes Start. The session keeps running while subscribers remain.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pinned = false
	if len(f.subs) == 0 && f.session != nil {
		f.stopLocked()
	}
}

// close deactivates every subscription and stops the session.
func (f *Feed) close() {
	f.mu.Lock()
	f.closed = true
	f.pinned = false
	for id, sub := range f.subs {
		sub.active.Store(false)
		delete(f.subs, id)
	}
	if f.session != nil {
		f.stopLocked()
	}
	f.mu.Unlock()

	metrics.SetFeedSubscribers(f.cfg.Name, 0)
}

// wait blocks until every session goroutine has exited.
func (f *Feed) wait() {
	f.wg.Wait()
}

// startLocked begins a new session. Must be called with f.mu held.
func (f *Feed) startLocked() {
	ctx, cancel := context.WithCancel(f.base)
	s := &session{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	prev := f.lastDone
	f.session = s
	f.lastDone = s.done
	f.setStateLocked(StateConnecting)

	f.wg.Add(1)
	go f.run(s, prev)

	f.logger.Info("feed session started", "interval", f.cfg.Interval)
}

// stopLocked cancels the current session without waiting for it. A read in
// flight completes but its result is discarded. Must be called with f.mu held.
func (f *Feed) stopLocked() {
	f.session.cancel()
	f.session = nil
	f.setStateLocked(StateDisconnected)
	f.setStateLocked(StateIdle)

	f.logger.Info("feed session stopped")
}

// setStateLocked records a transition. Must be called with f.mu held.
func (f *Feed) setStateLocked(st State) {
	if f.state == st {
		return
	}
	f.logger.Debug("state change", "from", f.state, "to", st)
	f.state = st
	metrics.SetFeedState(f.cfg.Name, int(st))
}

// run is the session loop. It starts reading only after prev, the previous
// session's goroutine, has exited, so reads of one feed never overlap.
func (f *Feed) run(s *session, prev <-chan struct{}) {
	defer f.wg.Done()
	defer close(s.done)

	if prev != nil {
		select {
		case <-prev:
		case <-s.ctx.Done():
			return
		}
	}

	for {
		f.read(s)

		// Re-armed only after the read settled.
		t := time.NewTimer(f.cfg.Interval)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// read performs one read and commits its result.
func (f *Feed) read(s *session) {
	ctx := s.ctx
	if f.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.ReadTimeout)
		defer cancel()
	}

	price, err := f.source.Price(ctx)
	metrics.RecordFeedRead(f.cfg.Name, err)
	f.commit(s, price, err)
}

// commit applies a read result and broadcasts it, unless s has been stopped.
func (f *Feed) commit(s *session, price float64, err error) {
	f.commitMu.Lock()
	defer f.commitMu.Unlock()

	f.mu.Lock()
	if f.session != s || s.ctx.Err() != nil {
		f.mu.Unlock()
		f.logger.Debug("discarding read from stopped session")
		return
	}

	f.reads++
	ev := Event{Feed: f.cfg.Name}
	if err != nil {
		f.lastErr = err
		f.setStateLocked(StateError)
		ev.Err = err
	} else {
		ev.Sample = model.NewSample(f.now(), price)
		f.latest = ev.Sample
		f.hasLatest = true
		f.lastErr = nil
		f.setStateLocked(StateStreaming)
	}
	ev.State = f.state

	// Broadcast to a snapshot so listeners may unsubscribe mid-broadcast.
	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("price read failed", "err", err)
	} else {
		metrics.SetFeedPrice(f.cfg.Name, price)
		f.history.Append(context.WithoutCancel(s.ctx), f.cfg.HistoryKey, ev.Sample)
	}

	for _, sub := range subs {
		if sub.active.Load() {
			f.deliver(sub, ev)
		}
	}
}

func (f *Feed) deliver(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("listener panicked", "id", sub.id, "panic", r)
		}
	}()
	sub.listener(ev)
}

// State returns the current state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Latest returns the newest sample, including one restored from history.
func (f *Feed) Latest() (model.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.hasLatest
}

// History returns a copy of the feed history, oldest first.
func (f *Feed) History() []model.Sample {
	return f.history.Snapshot(f.cfg.HistoryKey)
}

// Status returns a point-in-time view of the feed.
func (f *Feed) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Status{
		Name:        f.cfg.Name,
		State:       f.state,
		Subscribers: len(f.subs),
		Reads:       f.reads,
		Interval:    f.cfg.Interval.String(),
	}
	if f.hasLatest {
		latest := f.latest
		st.Latest = &latest
	}
	if f.lastErr != nil {
		st.LastError = f.lastErr.Error()
	}
	return st
}

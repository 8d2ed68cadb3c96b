package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/theta-pulse/internal/metrics"
)

// ErrAlreadyStarted is returned by Start on a poller that has been started before.
var ErrAlreadyStarted = errors.New("poller already started")

// Producer produces one value per invocation.
type Producer[T any] func(ctx context.Context) (T, error)

// State is the observable refresh state of a Poller.
type State[T any] struct {
	Result     T         // Last successful result
	HasResult  bool      // False until the first success
	Err        error     // Error of the last invocation, nil after a success
	Refreshing bool      // An invocation is in flight
	UpdatedAt  time.Time // Completion time of the last invocation
	Cycles     int64     // Completed invocations
}

// Stale reports whether the result is from before the last failure.
func (s State[T]) Stale() bool {
	return s.HasResult && s.Err != nil
}

// Config holds poller configuration.
type Config struct {
	Name     string        // Used in logs and metrics
	Interval time.Duration // Wait after each completed invocation
	Timeout  time.Duration // Per-invocation timeout, 0 for none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:     name,
		Interval: 30 * time.Second,
		Timeout:  20 * time.Second,
	}
}

// Poller repeatedly invokes a Producer.
type Poller[T any] struct {
	cfg     Config
	produce Producer[T]
	logger  *slog.Logger

	mu        sync.RWMutex
	state     State[T]
	cancelled bool
	started   bool

	updates chan State[T]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New[T any](cfg Config, produce Producer[T], logger *slog.Logger) *Poller[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Poller[T]{
		cfg:     cfg,
		produce: produce,
		logger:  logger.With("poller", cfg.Name),
		updates: make(chan State[T], 1),
	}
}

// Name returns the poller name.
func (p *Poller[T]) Name() string {
	return p.cfg.Name
}

// Start begins the polling loop. The first invocation starts immediately.
// Producers run with a context derived from ctx, so an invocation in flight
// when Cancel is called still runs to completion.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true

	var loopCtx context.Context
	loopCtx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, loopCtx)

	p.logger.Info("poller started", "interval", p.cfg.Interval)
	return nil
}

// Cancel stops scheduling further invocations. A result that completes after
// Cancel is discarded. Cancel does not wait.
func (p *Poller[T]) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelled = true
	p.state.Refreshing = false
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop cancels the poller and waits for an in-flight invocation to finish.
func (p *Poller[T]) Stop(ctx context.Context) error {
	p.Cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the current state.
func (p *Poller[T]) State() State[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Updates delivers the state after each completed invocation. Only the most
// recent undelivered state is kept.
func (p *Poller[T]) Updates() <-chan State[T] {
	return p.updates
}

// run is the main polling loop.
func (p *Poller[T]) run(parent, loopCtx context.Context) {
	defer p.wg.Done()

	for {
		p.invoke(parent)

		// The wait starts only after the invocation settled.
		t := time.NewTimer(p.cfg.Interval)
		select {
		case <-loopCtx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// invoke runs the producer once and records its outcome.
func (p *Poller[T]) invoke(parent context.Context) {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return
	}
	p.state.Refreshing = true
	p.mu.Unlock()

	ctx := parent
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.produce(ctx)
	duration := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancelled {
		p.logger.Debug("discarding result after cancel", "duration", duration)
		return
	}

	metrics.RecordPollCycle(p.cfg.Name, duration, err)

	p.state.Refreshing = false
	p.state.UpdatedAt = time.Now()
	p.state.Cycles++
	if err != nil {
		p.state.Err = err
		p.logger.Warn("poll failed",
			"err", err,
			"stale", p.state.HasResult,
			"duration", duration,
		)
	} else {
		p.state.Result = result
		p.state.HasResult = true
		p.state.Err = nil
		p.logger.Debug("poll complete", "duration", duration)
	}

	p.publish(p.state)
}

// publish replaces any undelivered state with st. Must be called with lock held.
func (p *Poller[T]) publish(st State[T]) {
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- st:
	default:
	}
}

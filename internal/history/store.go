package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/rickgao/theta-pulse/internal/kvstore"
	"github.com/rickgao/theta-pulse/internal/metrics"
	"github.com/rickgao/theta-pulse/internal/model"
)

// Defaults used when no option overrides them.
const (
	DefaultCapacity = 100
	DefaultEpsilon  = 1e-12
)

// Store manages bounded sample histories keyed by name.
type Store struct {
	kv       kvstore.Store
	capacity int
	epsilon  float64
	logger   *slog.Logger

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	mu   sync.RWMutex
	ring *Ring[model.Sample]

	// persistMu orders writes to the backing store for this key.
	persistMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the maximum number of samples kept per key.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithEpsilon sets the dedup threshold. A sample whose value differs from the
// last stored value by less than eps is dropped.
func WithEpsilon(eps float64) Option {
	return func(s *Store) {
		if eps >= 0 {
			s.epsilon = eps
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a history store backed by kv.
func NewStore(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		capacity: DefaultCapacity,
		epsilon:  DefaultEpsilon,
		logger:   slog.Default(),
		series:   make(map[string]*series),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Capacity returns the per-key sample limit.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) get(key string) *series {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[key]
	if !ok {
		sr = &series{ring: NewRing[model.Sample](s.capacity)}
		s.series[key] = sr
	}
	return sr
}

// Load replaces the in-memory history for key with the persisted one and
// returns a copy of it. Missing, unreadable or malformed data yields an empty
// history. Only the newest Capacity samples are kept.
func (s *Store) Load(ctx context.Context, key string) []model.Sample {
	samples := s.read(ctx, key)
	if len(samples) > s.capacity {
		samples = samples[len(samples)-s.capacity:]
	}

	sr := s.get(key)
	sr.mu.Lock()
	sr.ring.Reset()
	for _, sample := range samples {
		sr.ring.Push(sample)
	}
	out := sr.ring.Items()
	sr.mu.Unlock()

	metrics.SetHistoryLength(key, len(out))
	s.logger.Debug("loaded history", "key", key, "samples", len(out))
	return out
}

func (s *Store) read(ctx context.Context, key string) []model.Sample {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("failed to read history", "key", key, "err", err)
		}
		return nil
	}

	var samples []model.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		s.logger.Warn("discarding malformed history", "key", key, "err", err)
		return nil
	}
	return samples
}

// Append adds sample to the history for key, evicting the oldest sample when
// full, then persists the whole history. Returns false if the sample was
// dropped as a duplicate of the last value.
func (s *Store) Append(ctx context.Context, key string, sample model.Sample) bool {
	sr := s.get(key)

	sr.persistMu.Lock()
	defer sr.persistMu.Unlock()

	sr.mu.Lock()
	if last, ok := sr.ring.Last(); ok && math.Abs(last.Value-sample.Value) < s.epsilon {
		sr.mu.Unlock()
		return false
	}
	sr.ring.Push(sample)
	items := sr.ring.Items()
	sr.mu.Unlock()

	metrics.SetHistoryLength(key, len(items))
	s.persist(ctx, key, items)
	return true
}

func (s *Store) persist(ctx context.Context, key string, items []model.Sample) {
	data, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn("failed to encode history", "key", key, "err", err)
		metrics.RecordHistoryPersistFailure(key)
		return
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.Warn("failed to persist history", "key", key, "samples", len(items), "err", err)
		metrics.RecordHistoryPersistFailure(key)
	}
}

// Snapshot returns a copy of the history for key, oldest first.
func (s *Store) Snapshot(key string) []model.Sample {
	sr := s.get(key)
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.ring.Items()
}

// Latest returns the newest sample for key.
func (s *Store) Latest(key string) (model.Sample, bool) {
	sr := s.get(key)
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.ring.Last()
}

// Stats returns ring statistics for key.
func (s *Store) Stats(key string) RingStats {
	sr := s.get(key)
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.ring.Stats()
}

// Clear empties the history for key and deletes the persisted copy.
func (s *Store) Clear(ctx context.Context, key string) error {
	sr := s.get(key)

	sr.persistMu.Lock()
	defer sr.persistMu.Unlock()

	sr.mu.Lock()
	sr.ring.Reset()
	sr.mu.Unlock()

	metrics.SetHistoryLength(key, 0)
	return s.kv.Delete(ctx, key)
}

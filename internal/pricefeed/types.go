package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/theta-pulse/internal/model"
)

var (
	// ErrFeedNotFound is returned when no feed is registered under a name.
	ErrFeedNotFound = errors.New("feed not found")

	// ErrFeedExists is returned when registering a name twice.
	ErrFeedExists = errors.New("feed already registered")

	// ErrShutdown is returned by operations on a shut down service.
	ErrShutdown = errors.New("price feed service shut down")
)

// State is the lifecycle state of a Feed.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateError
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Source produces one price per call.
type Source interface {
	Price(ctx context.Context) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (float64, error)

func (f SourceFunc) Price(ctx context.Context) (float64, error) {
	return f(ctx)
}

// Event is delivered to subscribers after each read. Exactly one of Sample
// (when Err is nil) or Err is meaningful.
type Event struct {
	Feed   string
	Sample model.Sample
	Err    error
	State  State
}

// Listener receives feed events. Listeners run on the feed goroutine and may
// unsubscribe themselves.
type Listener func(Event)

// Config holds feed configuration.
type Config struct {
	Name        string
	Interval    time.Duration // Wait after each completed read (default: 10s)
	ReadTimeout time.Duration // Per-read timeout, 0 for none
	HistoryKey  string        // Storage key of the feed history
}

// Status is a point-in-time view of a Feed.
type Status struct {
	Name        string        `json:"name"`
	State       State         `json:"state"`
	Latest      *model.Sample `json:"latest,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	Subscribers int           `json:"subscribers"`
	Reads       int64         `json:"reads"`
	Interval    string        `json:"interval"`
}

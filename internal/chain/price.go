package chain

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	"github.com/rickgao/theta-pulse/internal/api"
)

var (
	// ErrZeroReserve is returned when either reserve is empty.
	ErrZeroReserve = errors.New("pair has an empty reserve")

	// ErrTokenNotInPair is returned when the tracked token is neither token0 nor token1.
	ErrTokenNotInPair = errors.New("tracked token is not in pair")
)

// DerivePrice returns the spot price of tracked in units of the other token.
// dec0 and dec1 are the fixed-point scales of reserve0 and reserve1.
func DerivePrice(st PairState, tracked common.Address, dec0, dec1 int32) (float64, error) {
	if st.Reserve0 == nil || st.Reserve1 == nil || st.Reserve0.Sign() == 0 || st.Reserve1.Sign() == 0 {
		return 0, ErrZeroReserve
	}

	r0 := decimal.NewFromBigInt(st.Reserve0, -dec0)
	r1 := decimal.NewFromBigInt(st.Reserve1, -dec1)

	var price decimal.Decimal
	switch tracked {
	case st.Token0:
		price = r1.Div(r0)
	case st.Token1:
		price = r0.Div(r1)
	default:
		return 0, ErrTokenNotInPair
	}

	f, _ := price.Float64()
	return f, nil
}

// Pool derives the price of one token of a pair.
type Pool struct {
	pair     *Pair
	tracked  common.Address
	dec0     int32
	dec1     int32
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithDecimals sets the fixed-point scales of reserve0 and reserve1.
func WithDecimals(dec0, dec1 int32) PoolOption {
	return func(p *Pool) {
		p.dec0, p.dec1 = dec0, dec1
	}
}

// WithRetries retries JSON-RPC calls answered with HTTP 429 up to attempts
// times in total, waiting delay between attempts.
func WithRetries(attempts int, delay time.Duration) PoolOption {
	return func(p *Pool) {
		p.attempts, p.delay = attempts, delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a Pool quoting tracked. Reserves default to 18 decimals.
func NewPool(pair *Pair, tracked common.Address, opts ...PoolOption) *Pool {
	p := &Pool{
		pair:     pair,
		tracked:  tracked,
		dec0:     18,
		dec1:     18,
		attempts: 3,
		delay:    2 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Price reads the pair once and derives the tracked token price.
func (p *Pool) Price(ctx context.Context) (float64, error) {
	var st PairState
	err := api.Retry(ctx, p.attempts, p.delay, IsRateLimited, func(ctx context.Context) error {
		var err error
		st, err = p.pair.State(ctx)
		if IsRateLimited(err) {
			p.logger.Debug("rpc rate limited, retrying", "pair", p.pair.Address(), "delay", p.delay)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return DerivePrice(st, p.tracked, p.dec0, p.dec1)
}

// IsRateLimited reports whether err is a JSON-RPC HTTP 429.
func IsRateLimited(err error) bool {
	var httpErr rpc.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

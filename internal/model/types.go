package model

import "time"

// -----------------------------------------------------------------------------
// Feed Types
// -----------------------------------------------------------------------------

// Sample is a single timestamped value produced by a price feed.
// The JSON form is the persisted history format.
type Sample struct {
	Timestamp int64   `json:"timestamp"` // ms since epoch
	Value     float64 `json:"price"`
}

// NewSample creates a sample stamped with t.
func NewSample(t time.Time, value float64) Sample {
	return Sample{Timestamp: t.UnixMilli(), Value: value}
}

// Time returns the sample timestamp as a time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// Market is one row of the dashboard market table.
type Market struct {
	ID                string    `json:"id"`                 // CoinGecko id (e.g., "theta-token")
	Symbol            string    `json:"symbol"`             // Ticker symbol (e.g., "theta")
	Name              string    `json:"name"`               // Display name
	Image             string    `json:"image"`              // Logo URL
	Price             float64   `json:"price"`              // Current price
	MarketCap         float64   `json:"market_cap"`         // Market capitalisation
	MarketCapRank     int       `json:"market_cap_rank"`    // Rank by market cap, 0 if unranked
	Volume24h         float64   `json:"volume_24h"`         // 24h traded volume
	High24h           float64   `json:"high_24h"`           // 24h high
	Low24h            float64   `json:"low_24h"`            // 24h low
	Change1h          float64   `json:"change_1h"`          // % change over 1h
	Change24h         float64   `json:"change_24h"`         // % change over 24h
	Change7d          float64   `json:"change_7d"`          // % change over 7d
	CirculatingSupply float64   `json:"circulating_supply"` // Circulating supply
	Sparkline7d       []float64 `json:"sparkline_7d"`       // 7d sparkline prices, may be empty
	LastUpdated       int64     `json:"last_updated"`       // ms since epoch
}

// TrendingCoin is one entry of the trending list.
type TrendingCoin struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Thumb    string  `json:"thumb"`
	Rank     int     `json:"market_cap_rank"` // Market cap rank
	Score    int     `json:"score"`           // Position in the trending list (0 = top)
	PriceBTC float64 `json:"price_btc"`
}

// GlobalStats summarises the whole crypto market.
type GlobalStats struct {
	ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
	Markets                int                `json:"markets"`
	TotalMarketCap         float64            `json:"total_market_cap"`
	TotalVolume            float64            `json:"total_volume"`
	MarketCapChange24h     float64            `json:"market_cap_change_24h"` // % change over 24h
	Dominance              map[string]float64 `json:"dominance"`             // symbol -> % of total market cap
	UpdatedAt              int64              `json:"updated_at"`            // ms since epoch
}

// Coin is the detail view of a single coin.
type Coin struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Image             string   `json:"image"`
	MarketCapRank     int      `json:"market_cap_rank"`
	Price             float64  `json:"price"`
	MarketCap         float64  `json:"market_cap"`
	Volume24h         float64  `json:"volume_24h"`
	High24h           float64  `json:"high_24h"`
	Low24h            float64  `json:"low_24h"`
	Change24h         float64  `json:"change_24h"`
	CirculatingSupply float64  `json:"circulating_supply"`
	TotalSupply       *float64 `json:"total_supply"` // nil if unknown
	MaxSupply         *float64 `json:"max_supply"`   // nil if uncapped
	LastUpdated       int64    `json:"last_updated"`
}

// Candle is one OHLC bucket.
type Candle struct {
	Timestamp int64   `json:"timestamp"` // Bucket open time (ms since epoch)
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}

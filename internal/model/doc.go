// Package model defines shared data types used across the theta-pulse engine.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Prices: float64 in the quote currency (USD for REST data, paired token for pool prices)
//   - IDs: CoinGecko coin ids for REST data, feed names for on-chain feeds
package model

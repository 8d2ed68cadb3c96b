// Package api provides the CoinGecko REST client used for dashboard market
// data, and the rate-limit aware Fetcher it is built on.
//
// REST endpoints:
//   - Public: https://api.coingecko.com/api/v3 (header X-CG-API-KEY)
//   - Pro:    https://pro-api.coingecko.com/api/v3 (header x-cg-pro-api-key)
//   - News:   https://newsdata.io/api/1 (query parameter apikey)
//
// Fetcher retries only on HTTP 429, with a fixed delay between attempts.
// Every other status ends the call. Transport failures are never retried.
package api

// Package server exposes dashboard snapshots, price feeds and CoinGecko
// pass-through endpoints over HTTP.
//
// Routes:
//
//	GET /health
//	GET /metrics
//	GET /api/markets
//	GET /api/trending
//	GET /api/global
//	GET /api/news?q=crypto&page={nextPage}
//	GET /api/coins/{id}
//	GET /api/coins/{id}/ohlc?days=30
//	GET /api/ohlc?id={id}&days=30
//	GET /api/feeds
//	GET /api/feeds/{name}
//	GET /api/feeds/{name}/history
//
// Errors are returned as {"error": "..."}, except /api/news which answers
// {"status": "error", "message": "..."}. Upstream HTTP statuses pass
// through unchanged.
package server

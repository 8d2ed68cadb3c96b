package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/theta-pulse/internal/model"
)

// DefaultOHLCDays is the OHLC window requested when none is given.
const DefaultOHLCDays = "30"

// single is the attempt budget of calls that must not retry.
const single = 1

// GetMarkets fetches one page of the markets table. It makes a single attempt.
func (c *Client) GetMarkets(ctx context.Context, opts MarketsOptions) ([]MarketCoin, error) {
	query := url.Values{}
	query.Set("vs_currency", orDefault(opts.VsCurrency, "usd"))
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}
	query.Set("order", "market_cap_desc")
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("sparkline", strconv.FormatBool(opts.Sparkline))
	query.Set("price_change_percentage", "1h,24h,7d")

	var resp []MarketCoin
	err := c.get(ctx, call{endpoint: "markets", what: "data", path: "/coins/markets", query: query, attempts: single}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	return resp, nil
}

// GetTrending fetches the trending coins list. It makes a single attempt.
func (c *Client) GetTrending(ctx context.Context) ([]TrendingItem, error) {
	var resp TrendingResponse
	err := c.get(ctx, call{endpoint: "trending", what: "data", path: "/search/trending", attempts: single}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get trending: %w", err)
	}

	items := make([]TrendingItem, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		items = append(items, coin.Item)
	}
	return items, nil
}

// GetGlobal fetches global market statistics. It makes a single attempt.
func (c *Client) GetGlobal(ctx context.Context) (*GlobalData, error) {
	var resp GlobalResponse
	err := c.get(ctx, call{endpoint: "global", what: "market data", path: "/global", attempts: single}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get global: %w", err)
	}
	return &resp.Data, nil
}

// GetCoin fetches detail for one coin. It makes a single attempt.
func (c *Client) GetCoin(ctx context.Context, id string) (*CoinResponse, error) {
	query := url.Values{}
	query.Set("localization", "false")
	query.Set("tickers", "false")
	query.Set("market_data", "true")
	query.Set("community_data", "false")
	query.Set("developer_data", "false")
	query.Set("sparkline", "false")

	var resp CoinResponse
	err := c.get(ctx, call{endpoint: "coin", what: "coin data", path: "/coins/" + url.PathEscape(id), query: query, attempts: single}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get coin %s: %w", id, err)
	}
	return &resp, nil
}

// GetOHLC fetches OHLC candles for a coin over the last days days ("30" if
// empty). This is the one call that retries on 429.
func (c *Client) GetOHLC(ctx context.Context, id, vsCurrency, days string) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("vs_currency", orDefault(vsCurrency, "usd"))
	query.Set("days", orDefault(days, DefaultOHLCDays))

	var rows [][]float64
	err := c.get(ctx, call{endpoint: "ohlc", what: "OHLC data", path: "/coins/" + url.PathEscape(id) + "/ohlc", query: query}, &rows)
	if err != nil {
		return nil, fmt.Errorf("get ohlc %s: %w", id, err)
	}

	candles, err := CandlesFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("get ohlc %s: %w", id, err)
	}
	return candles, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

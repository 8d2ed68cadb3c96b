package api

import (
	"fmt"
	"time"

	"github.com/rickgao/theta-pulse/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp to milliseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMilli()
}

// ToModel converts a markets row.
func (m MarketCoin) ToModel() model.Market {
	out := model.Market{
		ID:                m.ID,
		Symbol:            m.Symbol,
		Name:              m.Name,
		Image:             m.Image,
		Price:             m.CurrentPrice,
		MarketCap:         m.MarketCap,
		MarketCapRank:     m.MarketCapRank,
		Volume24h:         m.TotalVolume,
		High24h:           m.High24h,
		Low24h:            m.Low24h,
		Change1h:          m.Change1h,
		Change24h:         m.Change24h,
		Change7d:          m.Change7d,
		CirculatingSupply: m.CirculatingSupply,
		LastUpdated:       ParseTimestamp(m.LastUpdated),
	}
	if m.Sparkline != nil {
		out.Sparkline7d = m.Sparkline.Price
	}
	return out
}

// ToModel converts a trending item. rank is its position in the list.
func (t TrendingItem) ToModel(rank int) model.TrendingCoin {
	return model.TrendingCoin{
		ID:       t.ID,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Thumb:    t.Thumb,
		Rank:     t.MarketCapRank,
		Score:    rank,
		PriceBTC: t.PriceBTC,
	}
}

// ToModel converts global stats quoted in vs.
func (g GlobalData) ToModel(vs string) model.GlobalStats {
	return model.GlobalStats{
		ActiveCryptocurrencies: g.ActiveCryptocurrencies,
		Markets:                g.Markets,
		TotalMarketCap:         g.TotalMarketCap[vs],
		TotalVolume:            g.TotalVolume[vs],
		MarketCapChange24h:     g.MarketCapChange24hUSD,
		Dominance:              g.MarketCapPercentage,
		UpdatedAt:              g.UpdatedAt * 1000,
	}
}

// ToModel converts coin detail quoted in vs.
func (c CoinResponse) ToModel(vs string) model.Coin {
	out := model.Coin{
		ID:            c.ID,
		Symbol:        c.Symbol,
		Name:          c.Name,
		Description:   c.Description.En,
		Image:         c.Image.Large,
		MarketCapRank: c.MarketCapRank,
		LastUpdated:   ParseTimestamp(c.LastUpdated),
	}
	if md := c.MarketData; md != nil {
		out.Price = md.CurrentPrice[vs]
		out.MarketCap = md.MarketCap[vs]
		out.Volume24h = md.TotalVolume[vs]
		out.High24h = md.High24h[vs]
		out.Low24h = md.Low24h[vs]
		out.Change24h = md.PriceChangePercentage24h
		out.CirculatingSupply = md.CirculatingSupply
		out.TotalSupply = md.TotalSupply
		out.MaxSupply = md.MaxSupply
	}
	return out
}

// CandlesFromRows converts OHLC rows of [time_ms, open, high, low, close].
func CandlesFromRows(rows [][]float64) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(rows))
	for i, r := range rows {
		if len(r) != 5 {
			return nil, fmt.Errorf("%w: ohlc row %d has %d fields", ErrInvalidResponse, i, len(r))
		}
		out = append(out, model.Candle{
			Timestamp: int64(r[0]),
			Open:      r[1],
			High:      r[2],
			Low:       r[3],
			Close:     r[4],
		})
	}
	return out, nil
}

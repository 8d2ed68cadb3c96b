package api

// MarketCoin from GET /coins/markets
type MarketCoin struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Image         string  `json:"image"`
	CurrentPrice  float64 `json:"current_price"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
	TotalVolume   float64 `json:"total_volume"`
	High24h       float64 `json:"high_24h"`
	Low24h        float64 `json:"low_24h"`

	// Requested with price_change_percentage=1h,24h,7d
	Change1h  float64 `json:"price_change_percentage_1h_in_currency"`
	Change24h float64 `json:"price_change_percentage_24h_in_currency"`
	Change7d  float64 `json:"price_change_percentage_7d_in_currency"`

	CirculatingSupply float64    `json:"circulating_supply"`
	Sparkline         *Sparkline `json:"sparkline_in_7d,omitempty"`
	LastUpdated       string     `json:"last_updated"` // ISO 8601
}

// Sparkline holds hourly prices over the last 7 days.
type Sparkline struct {
	Price []float64 `json:"price"`
}

// MarketsOptions are the query parameters of GET /coins/markets.
type MarketsOptions struct {
	VsCurrency string // Default "usd"
	Category   string // e.g. "theta-ecosystem"
	PerPage    int
	Page       int
	Sparkline  bool
}

// TrendingResponse from GET /search/trending
type TrendingResponse struct {
	Coins []struct {
		Item TrendingItem `json:"item"`
	} `json:"coins"`
}

// TrendingItem is a coin in the trending list.
type TrendingItem struct {
	ID            string  `json:"id"`
	CoinID        int     `json:"coin_id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb"`
	Small         string  `json:"small"`
	Large         string  `json:"large"`
	Slug          string  `json:"slug"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

// GlobalResponse from GET /global
type GlobalResponse struct {
	Data GlobalData `json:"data"`
}

// GlobalData is the payload of GlobalResponse.
type GlobalData struct {
	ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
	Markets                int                `json:"markets"`
	TotalMarketCap         map[string]float64 `json:"total_market_cap"`
	TotalVolume            map[string]float64 `json:"total_volume"`
	MarketCapPercentage    map[string]float64 `json:"market_cap_percentage"`
	MarketCapChange24hUSD  float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt              int64              `json:"updated_at"` // seconds since epoch
}

// CoinResponse from GET /coins/{id}
type CoinResponse struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
	Description   struct {
		En string `json:"en"`
	} `json:"description"`
	Image struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"image"`
	MarketData  *CoinMarketData `json:"market_data"`
	LastUpdated string          `json:"last_updated"` // ISO 8601
}

// CoinMarketData is the market_data block of CoinResponse. Maps are keyed by
// quote currency.
type CoinMarketData struct {
	CurrentPrice             map[string]float64 `json:"current_price"`
	MarketCap                map[string]float64 `json:"market_cap"`
	TotalVolume              map[string]float64 `json:"total_volume"`
	High24h                  map[string]float64 `json:"high_24h"`
	Low24h                   map[string]float64 `json:"low_24h"`
	PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
	CirculatingSupply        float64            `json:"circulating_supply"`
	TotalSupply              *float64           `json:"total_supply"`
	MaxSupply                *float64           `json:"max_supply"`
}

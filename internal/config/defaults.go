package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel         = "info"
	DefaultRestURL          = "https://api.coingecko.com/api/v3"
	DefaultAPIKeyHeader     = "X-CG-API-KEY"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxAttempts      = 3
	DefaultRetryDelay       = 2 * time.Second
	DefaultNewsURL          = "https://newsdata.io/api/1"
	DefaultNewsQuery        = "crypto"
	DefaultNewsLanguage     = "en"
	DefaultRefreshInterval  = 30 * time.Second
	DefaultRefreshTimeout   = 20 * time.Second
	DefaultVsCurrency       = "usd"
	DefaultCategory         = "theta-ecosystem"
	DefaultPerPage          = 100
	DefaultRPCURL           = "https://eth-rpc-api.thetatoken.org/rpc"
	DefaultChainTimeout     = 15 * time.Second
	DefaultFeedInterval     = 10 * time.Second
	DefaultTokenDecimals    = 18
	DefaultHistoryCapacity  = 100   // matches history.DefaultCapacity
	DefaultHistoryEpsilon   = 1e-12 // matches history.DefaultEpsilon
	DefaultStorageDriver    = "badger"
	DefaultBadgerDir        = "./data/history"
	DefaultRedisPrefix      = "theta-pulse:"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultDBTable          = "kv_blobs"
	DefaultServerPort       = 8080
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultMetricsPath      = "/metrics"
	DefaultFeedName         = "wtfuel"
	DefaultFeedPairAddress  = "0x2D65cf52EC55702eAee7ABF38e789e8E0048D7dD"
	DefaultFeedTrackedToken = "0x4Dc08B15Ea0E10B96c41Aec22Fab934Ba15c983e"
)

// ApplyDefaults fills every zero-valued optional field.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.APIKeyHeader == "" {
		c.API.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxAttempts == 0 {
		c.API.MaxAttempts = DefaultMaxAttempts
	}
	if c.API.RetryDelay == 0 {
		c.API.RetryDelay = DefaultRetryDelay
	}
	if c.API.RateLimitRPS > 0 && c.API.RateLimitBurst == 0 {
		c.API.RateLimitBurst = 1
	}

	// News defaults
	if c.News.RestURL == "" {
		c.News.RestURL = DefaultNewsURL
	}
	if c.News.Query == "" {
		c.News.Query = DefaultNewsQuery
	}
	if c.News.Language == "" {
		c.News.Language = DefaultNewsLanguage
	}
	if c.News.Timeout == 0 {
		c.News.Timeout = DefaultAPITimeout
	}

	// Refresh defaults
	if c.Refresh.MarketsInterval == 0 {
		c.Refresh.MarketsInterval = DefaultRefreshInterval
	}
	if c.Refresh.TrendingInterval == 0 {
		c.Refresh.TrendingInterval = DefaultRefreshInterval
	}
	if c.Refresh.GlobalInterval == 0 {
		c.Refresh.GlobalInterval = DefaultRefreshInterval
	}
	if c.Refresh.Timeout == 0 {
		c.Refresh.Timeout = DefaultRefreshTimeout
	}
	if c.Refresh.VsCurrency == "" {
		c.Refresh.VsCurrency = DefaultVsCurrency
	}
	if c.Refresh.Category == "" {
		c.Refresh.Category = DefaultCategory
	}
	if c.Refresh.PerPage == 0 {
		c.Refresh.PerPage = DefaultPerPage
	}

	// Chain defaults
	if c.Chain.RPCURL == "" {
		c.Chain.RPCURL = DefaultRPCURL
	}
	if c.Chain.Timeout == 0 {
		c.Chain.Timeout = DefaultChainTimeout
	}
	if c.Chain.MaxAttempts == 0 {
		c.Chain.MaxAttempts = DefaultMaxAttempts
	}
	if c.Chain.RetryDelay == 0 {
		c.Chain.RetryDelay = DefaultRetryDelay
	}

	// Feed defaults
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{{
			Name:         DefaultFeedName,
			PairAddress:  DefaultFeedPairAddress,
			TrackedToken: DefaultFeedTrackedToken,
		}}
	}
	for i := range c.Feeds {
		applyFeedDefaults(&c.Feeds[i])
	}

	// History defaults
	if c.History.Capacity == 0 {
		c.History.Capacity = DefaultHistoryCapacity
	}
	if c.History.Epsilon == 0 {
		c.History.Epsilon = DefaultHistoryEpsilon
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
		if c.Storage.Badger.Dir == "" {
			c.Storage.Badger.Dir = DefaultBadgerDir
		}
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = DefaultRedisPrefix
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyFeedDefaults(f *FeedConfig) {
	if f.Decimals0 == 0 {
		f.Decimals0 = DefaultTokenDecimals
	}
	if f.Decimals1 == 0 {
		f.Decimals1 = DefaultTokenDecimals
	}
	if f.Interval == 0 {
		f.Interval = DefaultFeedInterval
	}
	if f.HistoryKey == "" {
		f.HistoryKey = f.Name + "_price_history"
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.Table == "" {
		db.Table = DefaultDBTable
	}
}

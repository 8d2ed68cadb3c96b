package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration for a theta-pulse instance.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
	News    NewsConfig    `yaml:"news"`
	Refresh RefreshConfig `yaml:"refresh"`
	Chain   ChainConfig   `yaml:"chain"`
	Feeds   []FeedConfig  `yaml:"feeds"`
	History HistoryConfig `yaml:"history"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls the slog handler installed by the binaries.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// APIConfig holds CoinGecko REST settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	APIKey         string        `yaml:"api_key"`
	APIKeyHeader   string        `yaml:"api_key_header"` // X-CG-API-KEY (demo) or x-cg-pro-api-key (pro)
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"` // total attempts on HTTP 429, including the first
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"` // 0 disables client-side pacing
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// NewsConfig holds newsdata.io settings. An empty APIKey leaves the news
// route answering 500.
type NewsConfig struct {
	RestURL  string        `yaml:"rest_url"`
	APIKey   string        `yaml:"api_key"`
	Query    string        `yaml:"query"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RefreshConfig holds dashboard polling settings.
type RefreshConfig struct {
	MarketsInterval  time.Duration `yaml:"markets_interval"`
	TrendingInterval time.Duration `yaml:"trending_interval"`
	GlobalInterval   time.Duration `yaml:"global_interval"`
	Timeout          time.Duration `yaml:"timeout"` // per-invocation producer timeout
	VsCurrency       string        `yaml:"vs_currency"`
	Category         string        `yaml:"category"`
	PerPage          int           `yaml:"per_page"`
}

// ChainConfig holds the JSON-RPC endpoint used for pool reads.
type ChainConfig struct {
	RPCURL      string        `yaml:"rpc_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// FeedConfig describes one on-chain price feed.
type FeedConfig struct {
	Name         string        `yaml:"name"`
	PairAddress  string        `yaml:"pair_address"`
	TrackedToken string        `yaml:"tracked_token"`
	Decimals0    int32         `yaml:"decimals0"` // 0 means DefaultTokenDecimals
	Decimals1    int32         `yaml:"decimals1"`
	Interval     time.Duration `yaml:"interval"`
	HistoryKey   string        `yaml:"history_key"`
}

// HistoryConfig holds bounded history settings shared by all feeds.
type HistoryConfig struct {
	Capacity int     `yaml:"capacity"`
	Epsilon  float64 `yaml:"epsilon"`
}

// StorageConfig selects the key-value backend for persisted history.
type StorageConfig struct {
	Driver   string       `yaml:"driver"` // memory, badger, redis, postgres
	Badger   BadgerConfig `yaml:"badger"`
	Redis    RedisConfig  `yaml:"redis"`
	Postgres DBConfig     `yaml:"postgres"`
}

// BadgerConfig holds embedded badger settings.
type BadgerConfig struct {
	Dir string `yaml:"dir"` // empty runs badger in memory
}

// RedisConfig holds a redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
	Table    string `yaml:"table"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// SlogLevel returns the slog level for Level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

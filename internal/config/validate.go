package config

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	logLevels      = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
)

// Storage drivers accepted by storage.driver.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if _, ok := logLevels[c.Log.Level]; !ok {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.MaxAttempts < 1 {
		return errors.New("api.max_attempts must be >= 1")
	}
	if c.API.RetryDelay < 0 {
		return errors.New("api.retry_delay must be >= 0")
	}
	if c.API.RateLimitRPS < 0 {
		return errors.New("api.rate_limit_rps must be >= 0")
	}

	if c.Refresh.PerPage < 1 || c.Refresh.PerPage > 250 {
		return fmt.Errorf("refresh.per_page must be between 1 and 250, got %d", c.Refresh.PerPage)
	}

	if c.Chain.RPCURL == "" && len(c.Feeds) > 0 {
		return errors.New("chain.rpc_url is required when feeds are configured")
	}
	if c.Chain.MaxAttempts < 1 {
		return errors.New("chain.max_attempts must be >= 1")
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for i, f := range c.Feeds {
		if err := f.validate(fmt.Sprintf("feeds[%d]", i)); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("feeds[%d].name %q is duplicated", i, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	if c.History.Capacity < 1 {
		return errors.New("history.capacity must be >= 1")
	}
	if c.History.Epsilon < 0 {
		return errors.New("history.epsilon must be >= 0")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverBadger:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, badger, redis, postgres, got %q", c.Storage.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (f *FeedConfig) validate(prefix string) error {
	if f.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if !addressPattern.MatchString(f.PairAddress) {
		return fmt.Errorf("%s.pair_address must be a 0x-prefixed 20 byte hex address", prefix)
	}
	if !addressPattern.MatchString(f.TrackedToken) {
		return fmt.Errorf("%s.tracked_token must be a 0x-prefixed 20 byte hex address", prefix)
	}
	if f.Decimals0 < 0 || f.Decimals0 > 36 || f.Decimals1 < 0 || f.Decimals1 > 36 {
		return fmt.Errorf("%s decimals must be between 0 and 36", prefix)
	}
	if f.Interval <= 0 {
		return fmt.Errorf("%s.interval must be > 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

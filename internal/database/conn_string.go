package database

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/theta-pulse/internal/config"
)

const applicationName = "theta-pulse"

// BuildConnString builds a PostgreSQL URL for cfg. Credentials are escaped as
// URL userinfo and query parameters are sorted.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted returns the connection string with the password masked, for logs.
func Redacted(cfg config.DBConfig) string {
	u, err := url.Parse(BuildConnString(cfg))
	if err != nil {
		return fmt.Sprintf("postgres://%s@%s/%s", cfg.User, cfg.Host, cfg.Name)
	}
	return u.Redacted()
}

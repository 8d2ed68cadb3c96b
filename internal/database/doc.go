// Package database provides PostgreSQL connection pool management.
//
// Postgres is one of the key-value backends for persisted feed history
// (storage.driver: postgres); see internal/kvstore.
package database

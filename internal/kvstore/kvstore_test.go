package kvstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/theta-pulse/internal/config"
)

// testStore runs the behaviour every backend must share.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "wtfuel_price_history", []byte(`[{"timestamp":1,"price":0.5}]`)))

		got, err := s.Get(ctx, "wtfuel_price_history")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"timestamp":1,"price":0.5}]`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte("one")))
		require.NoError(t, s.Set(ctx, "k", []byte("two")))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "gone", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone"))

		_, err := s.Get(ctx, "gone")
		require.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing key is not an error.
		require.NoError(t, s.Delete(ctx, "gone"))
	})
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	testStore(t, s)

	t.Run("values are copied", func(t *testing.T) {
		ctx := context.Background()
		buf := []byte("abc")
		require.NoError(t, s.Set(ctx, "copy", buf))
		buf[0] = 'z'

		got, err := s.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})
}

func TestBadgerInMemory(t *testing.T) {
	s, err := OpenBadger("", nil)
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "persisted", []byte("yes")))
	require.NoError(t, s.Close())

	reopened, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "yes", string(got))
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("THETA_PULSE_TEST_REDIS")
	if addr == "" {
		t.Skip("THETA_PULSE_TEST_REDIS not set")
	}

	s, err := Open(context.Background(), config.StorageConfig{
		Driver: config.DriverRedis,
		Redis:  config.RedisConfig{Addr: addr, Prefix: "theta-pulse-test:"},
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestPostgres(t *testing.T) {
	host := os.Getenv("THETA_PULSE_TEST_POSTGRES")
	if host == "" {
		t.Skip("THETA_PULSE_TEST_POSTGRES not set")
	}

	cfg := config.StorageConfig{
		Driver: config.DriverPostgres,
		Postgres: config.DBConfig{
			Host:     host,
			Port:     config.DefaultDBPort,
			Name:     "postgres",
			User:     "postgres",
			Password: os.Getenv("PGPASSWORD"),
			SSLMode:  "disable",
			MaxConns: 2,
			MinConns: 0,
			Table:    "kv_blobs_test",
		},
	}

	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "etcd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage driver "etcd"`)
}

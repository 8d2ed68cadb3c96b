package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/theta-pulse/internal/config"
	"github.com/rickgao/theta-pulse/internal/history"
	"github.com/rickgao/theta-pulse/internal/kvstore"
	"github.com/rickgao/theta-pulse/internal/version"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to theta-pulse config file",
		Value:   "configs/theta-pulse.yaml",
	}
	envFlag = &cli.StringFlag{
		Name:  "env",
		Usage: "optional .env file loaded before the config",
		Value: ".env",
	}
	feedFlag = &cli.StringFlag{
		Name:    "feed",
		Aliases: []string{"f"},
		Usage:   "feed name from the config",
	}
	keyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "raw history key, overrides --feed",
	}
)

func main() {
	app := cli.NewApp()

	app.Version = version.Version
	app.Name = "historyctl"
	app.Usage = "Inspect and maintain persisted price history"
	app.Flags = []cli.Flag{configFlag, envFlag}
	app.Commands = append(
		app.Commands,
		&feeds,
		&show,
		&stats,
		&export,
		&clearHistory,
	)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[historyctl] %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnvFile(c.String(envFlag.Name)); err != nil {
		return nil, err
	}
	return config.LoadAndValidate(c.String(configFlag.Name))
}

// openHistory opens the configured storage backend and wraps it in a history
// store. The returned cleanup closes the backend.
func openHistory(c *cli.Context) (*config.Config, *history.Store, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	kv, err := kvstore.Open(context.Background(), cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open storage: %w", err)
	}

	h := history.NewStore(kv,
		history.WithCapacity(cfg.History.Capacity),
		history.WithEpsilon(cfg.History.Epsilon),
		history.WithLogger(logger),
	)
	cleanup := func() { kv.Close() }
	return cfg, h, cleanup, nil
}

// historyKey resolves --key or --feed to a storage key.
func historyKey(c *cli.Context, cfg *config.Config) (string, error) {
	if key := c.String(keyFlag.Name); key != "" {
		return key, nil
	}
	name := c.String(feedFlag.Name)
	if name == "" {
		return "", fmt.Errorf("one of --feed or --key is required")
	}
	for _, f := range cfg.Feeds {
		if f.Name == name {
			return f.HistoryKey, nil
		}
	}
	return "", fmt.Errorf("feed %q not found in config", name)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/theta-pulse/internal/model"
)

var feeds = cli.Command{
	Name:   "feeds",
	Usage:  "list configured feeds and their history keys",
	Action: feedsAction,
}

var show = cli.Command{
	Name:   "show",
	Usage:  "print the persisted history of a feed as JSON",
	Flags:  []cli.Flag{feedFlag, keyFlag, &cli.IntFlag{Name: "tail", Usage: "only print the last N samples"}},
	Action: showAction,
}

var stats = cli.Command{
	Name:   "stats",
	Usage:  "summarize the persisted history of a feed",
	Flags:  []cli.Flag{feedFlag, keyFlag},
	Action: statsAction,
}

var export = cli.Command{
	Name:  "export",
	Usage: "write the persisted history of a feed as CSV",
	Flags: []cli.Flag{
		feedFlag,
		keyFlag,
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, stdout when empty"},
	},
	Action: exportAction,
}

var clearHistory = cli.Command{
	Name:  "clear",
	Usage: "delete the persisted history of a feed",
	Flags: []cli.Flag{
		feedFlag,
		keyFlag,
		&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation check"},
	},
	Action: clearAction,
}

func feedsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	type row struct {
		Name       string `json:"name"`
		Pair       string `json:"pair"`
		Tracked    string `json:"tracked"`
		HistoryKey string `json:"history_key"`
		Interval   string `json:"interval"`
	}
	rows := make([]row, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		rows = append(rows, row{
			Name:       f.Name,
			Pair:       f.PairAddress,
			Tracked:    f.TrackedToken,
			HistoryKey: f.HistoryKey,
			Interval:   f.Interval.String(),
		})
	}
	return printJSON(rows)
}

func showAction(c *cli.Context) error {
	cfg, h, cleanup, err := openHistory(c)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := historyKey(c, cfg)
	if err != nil {
		return err
	}

	samples := h.Load(context.Background(), key)
	if n := c.Int("tail"); n > 0 && n < len(samples) {
		samples = samples[len(samples)-n:]
	}
	return printJSON(samples)
}

func statsAction(c *cli.Context) error {
	cfg, h, cleanup, err := openHistory(c)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := historyKey(c, cfg)
	if err != nil {
		return err
	}

	samples := h.Load(context.Background(), key)
	out := summarize(key, h.Capacity(), samples)
	return printJSON(out)
}

func exportAction(c *cli.Context) error {
	cfg, h, cleanup, err := openHistory(c)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := historyKey(c, cfg)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return writeCSV(w, h.Load(context.Background(), key))
}

func clearAction(c *cli.Context) error {
	cfg, h, cleanup, err := openHistory(c)
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := historyKey(c, cfg)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to clear %q without --yes", key)
	}

	if err := h.Clear(context.Background(), key); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", key)
	return nil
}

type summary struct {
	Key      string     `json:"key"`
	Count    int        `json:"count"`
	Capacity int        `json:"capacity"`
	First    *time.Time `json:"first,omitempty"`
	Last     *time.Time `json:"last,omitempty"`
	Min      float64    `json:"min"`
	Max      float64    `json:"max"`
	Latest   float64    `json:"latest"`
}

func summarize(key string, capacity int, samples []model.Sample) summary {
	out := summary{Key: key, Count: len(samples), Capacity: capacity}
	if len(samples) == 0 {
		return out
	}

	first, last := samples[0].Time(), samples[len(samples)-1].Time()
	out.First, out.Last = &first, &last
	out.Min, out.Max = samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		if s.Value < out.Min {
			out.Min = s.Value
		}
		if s.Value > out.Max {
			out.Max = s.Value
		}
	}
	out.Latest = samples[len(samples)-1].Value
	return out
}

func writeCSV(w io.Writer, samples []model.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "time", "price"}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			strconv.FormatInt(s.Timestamp, 10),
			s.Time().UTC().Format(time.RFC3339),
			strconv.FormatFloat(s.Value, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Command probe performs one read against every upstream theta-pulse depends
// on and prints what came back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rickgao/theta-pulse/internal/api"
	"github.com/rickgao/theta-pulse/internal/chain"
	"github.com/rickgao/theta-pulse/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/theta-pulse.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional .env file loaded before the config")
	coinID := flag.String("coin", "theta-token", "coin id used for the coin and OHLC probes")
	skipChain := flag.Bool("skip-chain", false, "skip the on-chain feed probes")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	client := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithTimeout(30*time.Second),
		api.WithAPIKeyHeader(cfg.API.APIKeyHeader),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	vs := cfg.Refresh.VsCurrency

	// Test 1: Markets
	fmt.Println("=== Testing GetMarkets ===")
	markets, err := client.GetMarkets(ctx, api.MarketsOptions{
		VsCurrency: vs,
		Category:   cfg.Refresh.Category,
		PerPage:    5,
		Page:       1,
	})
	if err != nil {
		log.Fatalf("GetMarkets failed: %v", err)
	}
	fmt.Printf("Fetched %d markets\n", len(markets))
	for i, m := range markets {
		fmt.Printf("  %d. %s (%s) - %v %s\n", i+1, m.Name, m.Symbol, m.CurrentPrice, vs)
	}

	// Test 2: Trending
	fmt.Println("\n=== Testing GetTrending ===")
	trending, err := client.GetTrending(ctx)
	if err != nil {
		log.Fatalf("GetTrending failed: %v", err)
	}
	fmt.Printf("Fetched %d trending coins\n", len(trending))
	for i, t := range trending {
		if i >= 5 {
			break
		}
		fmt.Printf("  %d. %s (%s) rank %d\n", i+1, t.Name, t.Symbol, t.MarketCapRank)
	}

	// Test 3: Global
	fmt.Println("\n=== Testing GetGlobal ===")
	global, err := client.GetGlobal(ctx)
	if err != nil {
		log.Fatalf("GetGlobal failed: %v", err)
	}
	stats := global.ToModel(vs)
	fmt.Printf("Total market cap: %.0f %s\n", stats.TotalMarketCap, vs)
	fmt.Printf("Total volume: %.0f %s\n", stats.TotalVolume, vs)

	// Test 4: Coin
	fmt.Printf("\n=== Testing GetCoin (%s) ===\n", *coinID)
	coin, err := client.GetCoin(ctx, *coinID)
	if err != nil {
		log.Fatalf("GetCoin failed: %v", err)
	}
	detail := coin.ToModel(vs)
	fmt.Printf("Name: %s\n", detail.Name)
	fmt.Printf("Price: %v %s\n", detail.Price, vs)

	// Test 5: OHLC
	fmt.Printf("\n=== Testing GetOHLC (%s) ===\n", *coinID)
	candles, err := client.GetOHLC(ctx, *coinID, vs, api.DefaultOHLCDays)
	if err != nil {
		log.Fatalf("GetOHLC failed: %v", err)
	}
	fmt.Printf("Fetched %d candles\n", len(candles))
	if n := len(candles); n > 0 {
		last := candles[n-1]
		fmt.Printf("Last: O=%v H=%v L=%v C=%v\n", last.Open, last.High, last.Low, last.Close)
	}

	// Test 6: News
	if cfg.News.APIKey != "" {
		fmt.Println("\n=== Testing GetNews ===")
		news := api.NewNewsClient(cfg.News.RestURL, cfg.News.APIKey, api.WithTimeout(30*time.Second))
		articles, err := news.GetNews(ctx, api.NewsOptions{Query: cfg.News.Query, Language: cfg.News.Language})
		if err != nil {
			log.Fatalf("GetNews failed: %v", err)
		}
		fmt.Printf("Fetched %d articles\n", len(articles.Results))
		for i, a := range articles.Results {
			if i >= 3 {
				break
			}
			fmt.Printf("  %d. %s (%s)\n", i+1, a.Title, a.SourceID)
		}
	}

	if *skipChain || len(cfg.Feeds) == 0 {
		fmt.Println("\n=== All API tests passed! ===")
		return
	}

	// Test 7: Feeds
	eth, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer eth.Close()

	for _, fc := range cfg.Feeds {
		fmt.Printf("\n=== Testing feed %s ===\n", fc.Name)
		pair := chain.NewPair(common.HexToAddress(fc.PairAddress), eth)
		st, err := pair.State(ctx)
		if err != nil {
			log.Fatalf("State failed: %v", err)
		}
		fmt.Printf("token0: %s reserve0: %s\n", st.Token0.Hex(), st.Reserve0)
		fmt.Printf("token1: %s reserve1: %s\n", st.Token1.Hex(), st.Reserve1)

		price, err := chain.DerivePrice(st, common.HexToAddress(fc.TrackedToken), fc.Decimals0, fc.Decimals1)
		if err != nil {
			log.Fatalf("DerivePrice failed: %v", err)
		}
		fmt.Printf("Price: %v\n", price)
	}

	fmt.Println("\n=== All API tests passed! ===")
}

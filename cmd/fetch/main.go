// Command fetch prints candles for one instrument through the query facade.
// The subscription cache is not started, so session-routed instruments are
// fetched directly.
//
//	go run ./cmd/fetch -symbol AG -interval 1m -limit 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"quote_backend/internal/app/di"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/subscription"
	"quote_backend/internal/feature/marketdata/transport/http/dto"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always runs.
func run(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	symbol := fs.String("symbol", "AG", "instrument code")
	interval := fs.String("interval", "1m", "timeframe ("+timeframeList()+")")
	limit := fs.Int("limit", 20, "number of bars")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	tf, err := entity.ParseTimeframe(*interval)
	if err != nil {
		log.Println("[ERROR]", err)
		return 2
	}

	provider := di.NewSessionProvider()
	defer func() {
		if err := provider.Close(); err != nil {
			log.Println("[WARN] failed to close session:", err)
		}
	}()
	uc := di.NewMarketData(di.NewRESTMarket(nil), provider, subscription.NewStore(0))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	candles, err := uc.GetCandles(ctx, *symbol, tf, *limit)
	if err != nil {
		log.Println("[ERROR]", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.NewCandleResponses(candles)); err != nil {
		log.Println("[ERROR]", err)
		return 1
	}
	return 0
}

func timeframeList() string {
	all := entity.AllTimeframes()
	names := make([]string, len(all))
	for i, tf := range all {
		names[i] = tf.String()
	}
	return strings.Join(names, ",")
}

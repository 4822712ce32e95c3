// Package di provides dependency injection factories for creating application components.
package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"quote_backend/internal/feature/marketdata/adapters/alltick"
	"quote_backend/internal/feature/marketdata/adapters/tqsession"
	"quote_backend/internal/feature/marketdata/subscription"
	"quote_backend/internal/feature/marketdata/usecase"
	infrahttp "quote_backend/internal/platform/http"
	"quote_backend/internal/shared/ratelimiter"
)

// NewRESTMarket creates a fully configured AllTickMarket with HTTP client and rate limiter.
// When rdb is nil the quota is enforced per process only.
func NewRESTMarket(rdb *redis.Client) *alltick.AllTickMarket {
	cfg := alltick.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	limiter := ratelimiter.New(rdb, "alltick", cfg.RateLimit, cfg.RateInterval)
	return alltick.NewAllTickMarket(cfg, httpClient, limiter)
}

// NewMarketData creates the query facade over both providers and the cache.
func NewMarketData(rest usecase.RESTMarket, session usecase.SessionMarket, cache usecase.MarketCache) *usecase.MarketDataUsecase {
	return usecase.NewMarketDataUsecase(rest, session, cache, usecase.LoadConfig())
}

// NewSubscription creates the cache store and the manager that fills it from provider.
// Instruments without a session contract are dropped. The manager is not started.
func NewSubscription(provider *tqsession.Provider) (*subscription.Store, *subscription.Manager) {
	cfg := subscription.LoadConfig()
	for _, inst := range cfg.FilterInstruments(provider.HasContract) {
		slog.Error("no session contract for subscribed instrument, skipping", "instrument", inst)
	}
	store := subscription.NewStore(cfg.Freshness)
	return store, subscription.NewManager(store, provider, cfg)
}

package di

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"quote_backend/internal/app/router"
	analysishandler "quote_backend/internal/feature/analysis/transport/handler"
	mdhandler "quote_backend/internal/feature/marketdata/transport/handler"
	"quote_backend/internal/feature/marketdata/subscription"
	platformhandler "quote_backend/internal/platform/http/handler"
	infraredis "quote_backend/internal/platform/redis"
)

// App is the process-scoped object graph of the server.
type App struct {
	Router       *gin.Engine
	Subscription *subscription.Manager

	rdb *redis.Client
}

// NewApp wires every component. Redis and the analysis endpoint are optional
// and are skipped with a warning when unavailable.
func NewApp(ctx context.Context) *App {
	rdb, err := infraredis.NewRedisClient(ctx, infraredis.LoadConfig())
	if err != nil {
		slog.Warn("Redis unavailable. Rate limiting per process.", "error", err)
		rdb = nil
	}

	rest := NewRESTMarket(rdb)
	provider := NewSessionProvider()
	store, manager := NewSubscription(provider)
	market := NewMarketData(rest, provider, store)

	var analysisH *analysishandler.AnalysisHandler
	if h, err := NewAnalysisHandler(ctx, market); err != nil {
		slog.Warn("analysis endpoint disabled", "error", err)
	} else {
		analysisH = h
	}

	r := router.NewRouter(router.LoadConfig(),
		mdhandler.NewMarketHandler(market),
		analysisH,
		platformhandler.NewHealthHandler(manager),
	)
	return &App{Router: r, Subscription: manager, rdb: rdb}
}

// Close stops the subscription tasks, closing the session, then releases Redis.
func (a *App) Close() error {
	err := a.Subscription.Stop()
	if a.rdb != nil {
		err = errors.Join(err, a.rdb.Close())
	}
	return err
}

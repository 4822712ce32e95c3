// Package router はHTTPルーティングを組み立てます。
package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	analysishandler "quote_backend/internal/feature/analysis/transport/handler"
	mdhandler "quote_backend/internal/feature/marketdata/transport/handler"
	platformhandler "quote_backend/internal/platform/http/handler"
	"quote_backend/internal/platform/http/middleware"
)

// Config はルーターの設定です。
type Config struct {
	// AllowOrigins はCORSを許可するオリジンです。空の場合は全オリジンを許可します。
	AllowOrigins []string
}

// LoadConfig は CORS_ALLOW_ORIGINS（カンマ区切り）を読み込みます。
func LoadConfig() Config {
	var cfg Config
	for _, o := range strings.Split(os.Getenv("CORS_ALLOW_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}

// NewRouter はルートを登録したGinエンジンを返します。analysis が nil の場合は分析APIを登録しません。
func NewRouter(cfg Config, market *mdhandler.MarketHandler, analysis *analysishandler.AnalysisHandler,
	health *platformhandler.HealthHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Trace(), cors.New(corsConfig(cfg)))

	// 導通確認用
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	r.OPTIONS("/healthz", health.Health)

	data := r.Group("/api/data")
	{
		data.GET("/kline", market.GetKline)
		data.GET("/depth-tick", market.GetDepthTick)
		data.GET("/trade-tick", market.GetTradeTick)
	}

	if analysis != nil {
		r.POST("/api/analysis/kline", analysis.AnalyzeKline)
	}

	return r
}

func corsConfig(cfg Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{middleware.HeaderTraceID},
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return c
}

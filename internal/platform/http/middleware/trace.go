// Package middleware はHTTPサーバー共通のGinミドルウェアを提供します。
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"quote_backend/internal/shared/trace"
)

// HeaderTraceID はトレースIDを返すレスポンスヘッダーです。
const HeaderTraceID = "X-Trace-Id"

// Trace returns a Gin middleware that assigns a trace id to every request,
// stores it in the request context and logs the request when it completes.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := trace.NewID(start)

		c.Request = c.Request.WithContext(trace.WithID(c.Request.Context(), id))
		c.Header(HeaderTraceID, id)

		c.Next()

		slog.Info("http request",
			"trace", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"symbol", c.Query("symbol"),
			"interval", c.Query("interval"),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

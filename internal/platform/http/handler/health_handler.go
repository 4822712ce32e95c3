// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quote_backend/internal/api"
)

// HealthReporter はバックグラウンド購読の状態を報告します。
// ok は全エントリが live の場合に true になります。
type HealthReporter interface {
	HealthStatus() (ok bool, detail any)
}

// HealthHandler は /healthz を処理します。
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler はHealthHandlerを生成します。reporter は nil でも構いません。
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// 購読が劣化していてもプロセス自体は応答可能なため常に200を返し、
// 状態はボディの status で区別します。
func (h *HealthHandler) Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		resp := api.HealthResponse{Status: "ok"}
		if h.reporter != nil {
			ok, detail := h.reporter.HealthStatus()
			if !ok {
				resp.Status = "degraded"
			}
			resp.Subscriptions = detail
		}
		c.JSON(http.StatusOK, resp)
	}
}

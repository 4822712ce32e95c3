package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quote_backend/internal/api"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/shared/trace"
)

// StatusCode はエラー種別をHTTPステータスに変換します。
//
//	不正な引数            400
//	上流の拒否            上流の4xxはそのまま、5xxは502、それ以外は400
//	タイムアウト          504
//	接続失敗              502
//	認証・データなし・準備中 503
func StatusCode(err error) int {
	var ue *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidTimeframe), errors.Is(err, domain.ErrInvalidInstrument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrAuth):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUpstreamRejection):
		if errors.As(err, &ue) {
			switch {
			case ue.Status >= 500:
				return http.StatusBadGateway
			case ue.Status >= 400:
				return ue.Status
			}
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError はエラーを共通エンベロープ {ret, msg, trace} で返します。
func RespondError(c *gin.Context, err error) {
	status := StatusCode(err)
	id := TraceID(c)
	attrs := []any{"trace", id, "path", c.Request.URL.Path, "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Warn("request failed", attrs...)
	}
	c.JSON(status, api.ErrorResponse{
		Ret:   domain.RetCode(err),
		Msg:   err.Error(),
		Trace: id,
	})
}

// TraceID はリクエストのトレースIDを返します。
// ミドルウェアを通っていない場合はその場で採番します。
func TraceID(c *gin.Context) string {
	if id := trace.FromContext(c.Request.Context()); id != "" {
		return id
	}
	return trace.NewID(time.Now())
}

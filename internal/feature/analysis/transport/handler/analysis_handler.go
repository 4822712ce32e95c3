// Package handler はanalysisフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"quote_backend/internal/api"
	"quote_backend/internal/feature/analysis/domain"
	"quote_backend/internal/feature/analysis/domain/entity"
	mddomain "quote_backend/internal/feature/marketdata/domain"
	mdentity "quote_backend/internal/feature/marketdata/domain/entity"
	mdhandler "quote_backend/internal/feature/marketdata/transport/handler"
)

// AnalysisUsecase はローソク足分析のユースケースインターフェースを定義します。
type AnalysisUsecase interface {
	AnalyzeKlines(ctx context.Context, symbol string, tf mdentity.Timeframe, limit int, question string) (*entity.KlineAnalysis, error)
}

// AnalysisHandler はローソク足分析のHTTPリクエストを処理します。
type AnalysisHandler struct {
	uc AnalysisUsecase
}

// NewAnalysisHandler はAnalysisHandlerの新しいインスタンスを生成します。
func NewAnalysisHandler(uc AnalysisUsecase) *AnalysisHandler {
	return &AnalysisHandler{uc: uc}
}

// AnalyzeKline はローソク足を取得してLLMに分析させます。
//
// エンドポイント: POST /api/analysis/kline
// Content-Type: application/json
func (h *AnalysisHandler) AnalyzeKline(c *gin.Context) {
	var req api.KlineAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		mdhandler.RespondError(c, fmt.Errorf("%w: %w", mddomain.ErrInvalidInstrument, err))
		return
	}
	if req.Interval == "" {
		req.Interval = mdentity.Timeframe1m.String()
	}
	tf, err := mdentity.ParseTimeframe(req.Interval)
	if err != nil {
		mdhandler.RespondError(c, fmt.Errorf("%w: %w", mddomain.ErrInvalidTimeframe, err))
		return
	}

	analysis, err := h.uc.AnalyzeKlines(c.Request.Context(), req.Symbol, tf, req.Limit, req.Question)
	switch {
	case errors.Is(err, domain.ErrInvalidQuestion):
		h.respond(c, http.StatusBadRequest, mddomain.RetInvalidArgument, err)
		return
	case errors.Is(err, domain.ErrAnalyzer):
		h.respond(c, http.StatusBadGateway, mddomain.RetInternal, err)
		return
	case err != nil:
		mdhandler.RespondError(c, err)
		return
	}

	slog.Info("kline analysis served", "trace", mdhandler.TraceID(c), "symbol", analysis.Symbol,
		"interval", analysis.Interval, "bars", analysis.Bars)
	c.JSON(http.StatusOK, api.KlineAnalysisResponse{
		Symbol:   analysis.Symbol,
		Interval: analysis.Interval,
		Summary:  analysis.Summary,
	})
}

func (h *AnalysisHandler) respond(c *gin.Context, status, ret int, err error) {
	id := mdhandler.TraceID(c)
	slog.Error("kline analysis failed", "trace", id, "status", status, "error", err)
	c.JSON(status, api.ErrorResponse{Ret: ret, Msg: err.Error(), Trace: id})
}

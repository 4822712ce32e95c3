// Package handler はmarketdataフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/transport/http/dto"
)

// MarketUsecase は相場データ取得のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type MarketUsecase interface {
	GetCandles(ctx context.Context, instrument string, tf entity.Timeframe, limit int) ([]entity.Candle, error)
	GetQuote(ctx context.Context, instrument string) (entity.Quote, error)
	GetTrade(ctx context.Context, instrument string) (entity.Trade, error)
}

// MarketHandler は相場データのHTTPリクエストを処理します。
type MarketHandler struct {
	uc MarketUsecase
}

// NewMarketHandler は指定されたusecaseでMarketHandlerを生成します。
func NewMarketHandler(uc MarketUsecase) *MarketHandler {
	return &MarketHandler{uc: uc}
}

// GetKline はローソク足を昇順のJSON配列で返します。
//
// エンドポイント例:
// GET /api/data/kline?symbol=AG&interval=1m&limit=100
func (h *MarketHandler) GetKline(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	interval := c.DefaultQuery("interval", entity.Timeframe1m.String())
	tf, err := entity.ParseTimeframe(interval)
	if err != nil {
		RespondError(c, fmt.Errorf("%w: %w", domain.ErrInvalidTimeframe, err))
		return
	}
	// 数値でない場合は0となり、usecase側で既定値に置き換えられる
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

	candles, err := h.uc.GetCandles(c.Request.Context(), symbol, tf, limit)
	if err != nil {
		RespondError(c, err)
		return
	}

	slog.Debug("kline served", "trace", TraceID(c), "symbol", symbol, "interval", tf, "bars", len(candles))
	c.JSON(http.StatusOK, dto.NewCandleResponses(candles))
}

// GetDepthTick は最新の板情報をAllTick互換のエンベロープで返します。
func (h *MarketHandler) GetDepthTick(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	q, err := h.uc.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDepthTickResponse(q, TraceID(c)))
}

// GetTradeTick は最新の約定をAllTick互換のエンベロープで返します。
func (h *MarketHandler) GetTradeTick(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	tr, err := h.uc.GetTrade(c.Request.Context(), symbol)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTradeTickResponse(tr, TraceID(c)))
}

const defaultLimit = 100

func requireSymbol(c *gin.Context) (string, bool) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		RespondError(c, fmt.Errorf("%w: symbol is required", domain.ErrInvalidInstrument))
		return "", false
	}
	return symbol, true
}

package dto

import (
	"strconv"

	"quote_backend/internal/feature/marketdata/domain/entity"
)

// TradeTickItem は成約ティック1件です。価格・数量・時刻は文字列で返します。
type TradeTickItem struct {
	Code     string `json:"code"`
	Price    string `json:"price"`
	Volume   string `json:"volume"`
	TickTime string `json:"tick_time"`
}

// TradeTickData は tick_list を包むデータ部です。
type TradeTickData struct {
	TickList []TradeTickItem `json:"tick_list"`
}

// TradeTickResponse は trade-tick のエンベロープです。
type TradeTickResponse struct {
	Ret   int           `json:"ret"`
	Msg   string        `json:"msg"`
	Trace string        `json:"trace"`
	Data  TradeTickData `json:"data"`
}

// NewTradeTickResponse は最新の約定を1件だけ含むエンベロープを生成します。
func NewTradeTickResponse(tr entity.Trade, trace string) TradeTickResponse {
	return TradeTickResponse{
		Ret:   200,
		Msg:   "ok",
		Trace: trace,
		Data: TradeTickData{TickList: []TradeTickItem{{
			Code:     tr.Instrument,
			Price:    strconv.FormatFloat(tr.Price, 'f', -1, 64),
			Volume:   strconv.FormatFloat(tr.Volume, 'f', -1, 64),
			TickTime: strconv.FormatInt(tr.TickTime, 10),
		}}},
	}
}

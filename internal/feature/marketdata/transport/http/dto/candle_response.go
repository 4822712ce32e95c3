package dto

import "quote_backend/internal/feature/marketdata/domain/entity"

// CandleResponse はロウソク足1本のレスポンスDTOです。
type CandleResponse struct {
	T  int64   `json:"t"`  // 足の開始時刻（ms）
	O  float64 `json:"o"`  // 始値
	C  float64 `json:"c"`  // 終値
	H  float64 `json:"h"`  // 高値
	L  float64 `json:"l"`  // 安値
	V  float64 `json:"v"`  // 出来高
	Tu float64 `json:"tu"` // 売買代金
}

// NewCandleResponses はドメインのローソク足をレスポンスDTOに変換します。
func NewCandleResponses(candles []entity.Candle) []CandleResponse {
	out := make([]CandleResponse, 0, len(candles))
	for _, x := range candles {
		out = append(out, CandleResponse{
			T: x.Timestamp, O: x.Open, C: x.Close, H: x.High, L: x.Low, V: x.Volume, Tu: x.Turnover,
		})
	}
	return out
}

package dto

import "quote_backend/internal/feature/marketdata/domain/entity"

// BookLevelResponse は板の1段です。
type BookLevelResponse struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// QuoteResponse は depth_list の1件です。
// 上流が提供しない項目は0または空文字になります。
type QuoteResponse struct {
	Code      string              `json:"code"`
	Symbol    string              `json:"symbol"`
	LastPrice float64             `json:"last_price"`
	Volume    float64             `json:"volume"`
	TickTime  int64               `json:"tick_time"`
	Bids      []BookLevelResponse `json:"bids"`
	Asks      []BookLevelResponse `json:"asks"`

	Amount          float64 `json:"amount"`
	OpenInterest    float64 `json:"open_interest"`
	Open            float64 `json:"open"`
	Highest         float64 `json:"highest"`
	Lowest          float64 `json:"lowest"`
	Close           float64 `json:"close"`
	Average         float64 `json:"average"`
	SettlementPrice float64 `json:"settlement"`
	PreSettlement   float64 `json:"pre_settlement"`
	PreClose        float64 `json:"pre_close"`
	PreOpenInterest float64 `json:"pre_open_interest"`
	UpperLimit      float64 `json:"upper_limit"`
	LowerLimit      float64 `json:"lower_limit"`
	InstrumentName  string  `json:"instrument_name"`
	PriceTick       float64 `json:"price_tick"`
	VolumeMultiple  float64 `json:"volume_multiple"`
	Change          float64 `json:"change"`
	ChangePercent   float64 `json:"change_percent"`
}

// NewQuoteResponse はドメインのQuoteをレスポンスDTOに変換します。
func NewQuoteResponse(q entity.Quote) QuoteResponse {
	return QuoteResponse{
		Code:            q.Instrument,
		Symbol:          q.Instrument,
		LastPrice:       q.LastPrice,
		Volume:          q.Volume,
		TickTime:        q.EventTime,
		Bids:            levels(q.Bids),
		Asks:            levels(q.Asks),
		Amount:          q.Amount,
		OpenInterest:    q.OpenInterest,
		Open:            q.Open,
		Highest:         q.Highest,
		Lowest:          q.Lowest,
		Close:           q.Close,
		Average:         q.Average,
		SettlementPrice: q.SettlementPrice,
		PreSettlement:   q.PreSettlement,
		PreClose:        q.PreClose,
		PreOpenInterest: q.PreOpenInterest,
		UpperLimit:      q.UpperLimit,
		LowerLimit:      q.LowerLimit,
		InstrumentName:  q.InstrumentName,
		PriceTick:       q.PriceTick,
		VolumeMultiple:  q.VolumeMultiple,
		Change:          q.Change,
		ChangePercent:   q.ChangePercent,
	}
}

// DepthTickData は depth_list を包むデータ部です。
type DepthTickData struct {
	DepthList []QuoteResponse `json:"depth_list"`
}

// DepthTickResponse は depth-tick のエンベロープです。
type DepthTickResponse struct {
	Ret   int           `json:"ret"`
	Msg   string        `json:"msg"`
	Trace string        `json:"trace"`
	Data  DepthTickData `json:"data"`
}

// NewDepthTickResponse は最新の板情報を1件だけ含むエンベロープを生成します。
func NewDepthTickResponse(q entity.Quote, trace string) DepthTickResponse {
	return DepthTickResponse{
		Ret:   200,
		Msg:   "ok",
		Trace: trace,
		Data:  DepthTickData{DepthList: []QuoteResponse{NewQuoteResponse(q)}},
	}
}

func levels(in []entity.BookLevel) []BookLevelResponse {
	out := make([]BookLevelResponse, 0, len(in))
	for _, l := range in {
		out = append(out, BookLevelResponse{Price: l.Price, Volume: l.Volume})
	}
	return out
}

package dto

// SymbolQuery は /trade-tick と /depth-tick の data 部です。
type SymbolQuery struct {
	SymbolList []SymbolItem `json:"symbol_list"`
}

// SymbolItem は問い合わせ対象の銘柄です。
type SymbolItem struct {
	Code string `json:"code"`
}

// TradeTickResponse は /trade-tick のレスポンスです。
type TradeTickResponse struct {
	Envelope
	Data struct {
		TickList []TradeTick `json:"tick_list"`
	} `json:"data"`
}

// TradeTick は最新の約定です。tick_time はミリ秒です。
type TradeTick struct {
	Code           string `json:"code"`
	Seq            any    `json:"seq"`
	TickTime       any    `json:"tick_time"`
	Price          any    `json:"price"`
	Volume         any    `json:"volume"`
	Turnover       any    `json:"turnover"`
	TradeDirection any    `json:"trade_direction"`
}

// DepthTickResponse は /depth-tick のレスポンスです。
type DepthTickResponse struct {
	Envelope
	Data struct {
		TickList []DepthTick `json:"tick_list"`
	} `json:"data"`
}

// DepthTick は板情報のスナップショットです。
type DepthTick struct {
	Code     string       `json:"code"`
	Seq      any          `json:"seq"`
	TickTime any          `json:"tick_time"`
	Bids     []DepthLevel `json:"bids"`
	Asks     []DepthLevel `json:"asks"`
}

// DepthLevel は板の1段です。
type DepthLevel struct {
	Price  any `json:"price"`
	Volume any `json:"volume"`
}

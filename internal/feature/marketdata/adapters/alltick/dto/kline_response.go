// Package dto はAllTick quote APIのリクエスト/レスポンスDTOを定義します。
//
// 数値フィールドはAPIが文字列で返すことも数値で返すこともあるため any で受け、
// 変換は normalizer に任せます。
package dto

// Envelope は全エンドポイント共通のレスポンス外枠です。ret==200 のみ成功です。
type Envelope struct {
	Ret   int    `json:"ret"`
	Msg   string `json:"msg"`
	Trace string `json:"trace"`
}

// Query は token と並んでクエリパラメータ query に JSON 文字列として渡されます。
type Query struct {
	Trace string `json:"trace"`
	Data  any    `json:"data"`
}

// KlineQuery は /kline の data 部です。
type KlineQuery struct {
	Code              string `json:"code"`
	KlineType         int    `json:"kline_type"`
	KlineTimestampEnd int64  `json:"kline_timestamp_end"` // 0 は最新から遡る
	QueryKlineNum     int    `json:"query_kline_num"`
	AdjustType        int    `json:"adjust_type"`
}

// KlineResponse は /kline のレスポンスです。
type KlineResponse struct {
	Envelope
	Data struct {
		Code      string      `json:"code"`
		KlineType int         `json:"kline_type"`
		KlineList []KlineItem `json:"kline_list"`
	} `json:"data"`
}

// KlineItem は1本分のK線です。timestamp は秒単位です。
type KlineItem struct {
	Timestamp  any `json:"timestamp"`
	OpenPrice  any `json:"open_price"`
	ClosePrice any `json:"close_price"`
	HighPrice  any `json:"high_price"`
	LowPrice   any `json:"low_price"`
	Volume     any `json:"volume"`
	Turnover   any `json:"turnover"`
}

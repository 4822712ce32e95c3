// Package api はHTTP境界で共有するレスポンス型を定義します。
package api

// ErrorResponse は全エンドポイント共通のエラーレスポンスです。
type ErrorResponse struct {
	Ret   int    `json:"ret"`   // プロバイダ非依存のretコード
	Msg   string `json:"msg"`   // エラーメッセージ
	Trace string `json:"trace"` // リクエストのトレースID
}

// HealthResponse は /healthz のレスポンスです。
type HealthResponse struct {
	Status        string `json:"status"` // "ok" または "degraded"
	Subscriptions any    `json:"subscriptions,omitempty"`
}

// KlineAnalysisRequest は POST /api/analysis/kline のリクエストです。
type KlineAnalysisRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
	Question string `json:"question"`
}

// KlineAnalysisResponse はローソク足分析の結果です。
type KlineAnalysisResponse struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Summary  string `json:"summary"`
}

package entity

// KlineAnalysis はローソク足に対するLLM分析結果を表します。
type KlineAnalysis struct {
	Symbol   string // 分析対象の銘柄
	Interval string // 足種
	Bars     int    // プロンプトに含めた本数
	Summary  string // AI生成の分析サマリー
}

// Package usecase はanalysisフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"quote_backend/internal/feature/analysis/domain"
	"quote_backend/internal/feature/analysis/domain/entity"
	mddomain "quote_backend/internal/feature/marketdata/domain"
	mdentity "quote_backend/internal/feature/marketdata/domain/entity"
)

const (
	// DefaultQuestion は質問が省略された場合の指示です。
	DefaultQuestion = "Analyze the trend of the candles above and answer in JSON with trend, support, resistance and summary."
	// MaxQuestionLength は質問の最大文字数（rune数）です。
	MaxQuestionLength = 500
	// promptHeader はローソク足の列の見出し行です。
	promptHeader = "Candles (t, o, c, h, l, v), oldest first:"
)

// CandleSource はローソク足の取得元です。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleSource interface {
	GetCandles(ctx context.Context, instrument string, tf mdentity.Timeframe, limit int) ([]mdentity.Candle, error)
}

// Analyzer はプロンプトから分析サマリーを生成します。
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// AnalysisUsecase はローソク足を取得してLLMに転送します。
type AnalysisUsecase struct {
	candles  CandleSource
	analyzer Analyzer
}

// NewAnalysisUsecase はAnalysisUsecaseを生成します。
func NewAnalysisUsecase(candles CandleSource, analyzer Analyzer) *AnalysisUsecase {
	return &AnalysisUsecase{candles: candles, analyzer: analyzer}
}

// AnalyzeKlines は symbol/interval のローソク足を最大 limit 本取得し、question と共に分析させます。
func (u *AnalysisUsecase) AnalyzeKlines(ctx context.Context, symbol string, tf mdentity.Timeframe, limit int, question string) (*entity.KlineAnalysis, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, fmt.Errorf("%w: exceeds maximum length of %d characters", domain.ErrInvalidQuestion, MaxQuestionLength)
	}
	if question == "" {
		question = DefaultQuestion
	}

	candles, err := u.candles.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s", mddomain.ErrDataUnavailable, symbol, tf)
	}

	summary, err := u.analyzer.Analyze(ctx, FormatPrompt(candles, question))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrAnalyzer, symbol, tf, err)
	}
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrAnalyzer)
	}

	return &entity.KlineAnalysis{
		Symbol:   symbol,
		Interval: tf.String(),
		Bars:     len(candles),
		Summary:  summary,
	}, nil
}

// FormatPrompt は見出し行、1本1行の "t, o, c, h, l, v"、空行、質問の順にプロンプトを組み立てます。
func FormatPrompt(candles []mdentity.Candle, question string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteByte('\n')
	for _, c := range candles {
		b.WriteString(strconv.FormatInt(c.Timestamp, 10))
		for _, v := range []float64{c.Open, c.Close, c.High, c.Low, c.Volume} {
			b.WriteString(", ")
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(question)
	return b.String()
}

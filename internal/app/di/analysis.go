package di

import (
	"context"

	"quote_backend/internal/feature/analysis/adapters/gemini"
	"quote_backend/internal/feature/analysis/transport/handler"
	"quote_backend/internal/feature/analysis/usecase"
)

// NewAnalysisHandler creates the LLM analysis handler on top of candles.
func NewAnalysisHandler(ctx context.Context, candles usecase.CandleSource) (*handler.AnalysisHandler, error) {
	analyzer, err := gemini.NewGeminiAnalyzer(ctx, gemini.LoadConfig())
	if err != nil {
		return nil, err
	}
	return handler.NewAnalysisHandler(usecase.NewAnalysisUsecase(candles, analyzer)), nil
}

// Package gemini はGoogle Gemini APIを使用したローソク足分析クライアントを提供します。
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"quote_backend/internal/feature/analysis/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
	// DefaultTimeout は1回の生成リクエストの上限時間です。
	DefaultTimeout = 60 * time.Second
)

// Config はGeminiクライアントの設定です。
type Config struct {
	APIKey  string // 空の場合は genai が GEMINI_API_KEY / GOOGLE_API_KEY を読む
	Model   string
	Timeout time.Duration
}

// LoadConfig は環境変数から設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
	if m := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); m != "" {
		cfg.Model = m
	}
	if d, err := time.ParseDuration(os.Getenv("GEMINI_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	return cfg
}

// GeminiAnalyzer はGoogle Gemini APIを使用してローソク足分析を生成します。
type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// GeminiAnalyzerがAnalyzerを実装していることをコンパイル時に検証します。
var _ usecase.Analyzer = (*GeminiAnalyzer)(nil)

// NewGeminiAnalyzer はGeminiAnalyzerの新しいインスタンスを生成します。
// APIキーが未設定の場合はgenaiの環境変数解決（ADCを含む）に従います。
func NewGeminiAnalyzer(ctx context.Context, cfg Config) (*GeminiAnalyzer, error) {
	var cc *genai.ClientConfig
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &GeminiAnalyzer{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Analyze はプロンプトを使用して分析サマリーを生成します。
func (g *GeminiAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	return resp.Text(), nil
}

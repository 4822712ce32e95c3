package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	mdentity "quote_backend/internal/feature/marketdata/domain/entity"
	mdhandler "quote_backend/internal/feature/marketdata/transport/handler"
	platformhandler "quote_backend/internal/platform/http/handler"
	"quote_backend/internal/platform/http/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubMarket struct{}

func (stubMarket) GetCandles(ctx context.Context, instrument string, tf mdentity.Timeframe, limit int) ([]mdentity.Candle, error) {
	return []mdentity.Candle{{Timestamp: 1732000000000, Close: 6010}}, nil
}

func (stubMarket) GetQuote(ctx context.Context, instrument string) (mdentity.Quote, error) {
	return mdentity.Quote{Instrument: instrument}, nil
}

func (stubMarket) GetTrade(ctx context.Context, instrument string) (mdentity.Trade, error) {
	return mdentity.Trade{Instrument: instrument}, nil
}

func newTestRouter(cfg Config) *gin.Engine {
	return NewRouter(cfg, mdhandler.NewMarketHandler(stubMarket{}), nil, platformhandler.NewHealthHandler(nil))
}

func TestNewRouter_Routes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(Config{})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodHead, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/data/kline?symbol=AG", http.StatusOK},
		{http.MethodGet, "/api/data/depth-tick?symbol=AG", http.StatusOK},
		{http.MethodGet, "/api/data/trade-tick?symbol=AG", http.StatusOK},
		{http.MethodGet, "/api/data/kline", http.StatusBadRequest},
		// 分析APIはハンドラー未設定のため登録されない
		{http.MethodPost, "/api/analysis/kline", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderTraceID))
		})
	}
}

func TestNewRouter_CORS(t *testing.T) {
	t.Parallel()

	r := newTestRouter(Config{AllowOrigins: []string{"http://localhost:3000"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/data/kline?symbol=AG", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/data/kline?symbol=AG", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", " http://a.example , ,http://b.example")

	assert.Equal(t, []string{"http://a.example", "http://b.example"}, LoadConfig().AllowOrigins)

	t.Setenv("CORS_ALLOW_ORIGINS", "")
	assert.Empty(t, LoadConfig().AllowOrigins)
}

package di

import (
	"quote_backend/internal/feature/marketdata/adapters/tqsession"
	infrahttp "quote_backend/internal/platform/http"
)

// NewSessionProvider creates the process-wide session provider.
// Nothing is dialed until the first Connect or Fetch call.
func NewSessionProvider() *tqsession.Provider {
	cfg := tqsession.LoadConfig()
	return tqsession.NewProvider(cfg, infrahttp.NewHTTPClient(cfg.Timeout))
}

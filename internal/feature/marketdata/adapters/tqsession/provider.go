package tqsession

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
	"quote_backend/internal/feature/marketdata/domain"
	"quote_backend/internal/feature/marketdata/domain/entity"
	"quote_backend/internal/feature/marketdata/usecase"
)

// Provider はプロセスで共有するセッションの保持者です。
//
// 最初の利用時に認証と接続を行い、同時に来た呼び出しは1回の構築を共有します。
// 構築に失敗した結果は保持しないため、次の呼び出しで再試行されます。
// 切断済み、またはトークン失効が近いセッションは次の Get で張り直されます。
type Provider struct {
	cfg    Config
	auth   *Authenticator
	dialer *websocket.Dialer
	group  singleflight.Group
	now    func() time.Time

	mu     sync.Mutex
	sess   *Session
	closed bool
}

// ProviderがSessionMarketを実装していることをコンパイル時に検証します。
var _ usecase.SessionMarket = (*Provider)(nil)

// NewProvider は新しいProviderを生成します。接続は最初の Get まで行いません。
func NewProvider(cfg Config, client *http.Client) *Provider {
	return &Provider{
		cfg:    cfg,
		auth:   NewAuthenticator(cfg, client),
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Get は接続済みのセッションを返します。必要なら認証と接続を行います。
func (p *Provider) Get(ctx context.Context) (*Session, error) {
	if s, err := p.current(); s != nil || err != nil {
		return s, err
	}

	v, err, _ := p.group.Do("session", func() (any, error) {
		if s, err := p.current(); s != nil || err != nil {
			return s, err
		}

		p.mu.Lock()
		old := p.sess
		p.sess = nil
		p.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}

		tok, err := p.auth.Login(ctx)
		if err != nil {
			return nil, err
		}
		s, err := Dial(ctx, p.cfg, tok, p.dialer)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = s.Close()
			return nil, errProviderClosed()
		}
		p.sess = s
		slog.Info("session connected", "md_url", p.cfg.MDURL, "expires_at", tok.ExpiresAt)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// current は再利用できるセッションを返します。無ければ nil, nil です。
func (p *Provider) current() (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errProviderClosed()
	}
	s := p.sess
	if s == nil || !s.Alive() {
		return nil, nil
	}
	if exp := s.ExpiresAt(); !exp.IsZero() && p.now().Add(p.cfg.RefreshBefore).After(exp) {
		slog.Info("session token expiring, reconnecting", "expires_at", exp)
		return nil, nil
	}
	return s, nil
}

// Connect はセッションを確立します（確立済みなら何もしません）。
func (p *Provider) Connect(ctx context.Context) error {
	_, err := p.Get(ctx)
	return err
}

// WaitForUpdate は現在のセッションで次の差分を待ちます。接続が無ければ domain.ErrConnection を返します。
func (p *Provider) WaitForUpdate(ctx context.Context, deadline time.Time) error {
	s, err := p.connected()
	if err != nil {
		return err
	}
	return s.WaitForUpdate(ctx, deadline)
}

// KlineSeries は instrument のK線をローカルビューから返します（接続はしません）。
func (p *Provider) KlineSeries(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]dto.Kline, error) {
	contract, err := p.contract(instrument)
	if err != nil {
		return nil, err
	}
	s, err := p.connected()
	if err != nil {
		return nil, err
	}
	return s.GetKlineSeries(ctx, contract, tf, length)
}

// QuoteSnapshot は instrument の気配をローカルビューから返します（接続はしません）。
func (p *Provider) QuoteSnapshot(ctx context.Context, instrument string) (dto.Quote, bool, error) {
	contract, err := p.contract(instrument)
	if err != nil {
		return dto.Quote{}, false, err
	}
	s, err := p.connected()
	if err != nil {
		return dto.Quote{}, false, err
	}
	return s.GetQuoteSnapshot(ctx, contract)
}

// FetchKlines はキャッシュを介さずにK線を取得します。
// 必要なら接続し、データが届くまで最大 FetchTimeout 待ちます。
func (p *Provider) FetchKlines(ctx context.Context, instrument string, tf entity.Timeframe, length int) ([]dto.Kline, error) {
	contract, err := p.contract(instrument)
	if err != nil {
		return nil, err
	}
	s, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}

	deadline := p.now().Add(p.cfg.FetchTimeout)
	for {
		ks, err := s.GetKlineSeries(ctx, contract, tf, length)
		if err != nil {
			return nil, err
		}
		if len(ks) > 0 {
			return ks, nil
		}
		if !p.now().Before(deadline) {
			return nil, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrTimeout, Msg: fmt.Sprintf("no kline data for %s %s", contract, tf)}
		}
		if err := s.WaitForUpdate(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

// FetchQuote はキャッシュを介さずに気配を取得します。
func (p *Provider) FetchQuote(ctx context.Context, instrument string) (dto.Quote, error) {
	contract, err := p.contract(instrument)
	if err != nil {
		return dto.Quote{}, err
	}
	s, err := p.Get(ctx)
	if err != nil {
		return dto.Quote{}, err
	}

	deadline := p.now().Add(p.cfg.FetchTimeout)
	for {
		q, ok, err := s.GetQuoteSnapshot(ctx, contract)
		if err != nil {
			return dto.Quote{}, err
		}
		if ok {
			return q, nil
		}
		if !p.now().Before(deadline) {
			return dto.Quote{}, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrTimeout, Msg: "no quote for " + contract}
		}
		if err := s.WaitForUpdate(ctx, deadline); err != nil {
			return dto.Quote{}, err
		}
	}
}

// Close は保持しているセッションを閉じ、以降の Get を拒否します。2回目以降は何もしません。
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	s := p.sess
	p.sess = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	slog.Info("closing session")
	return s.Close()
}

func (p *Provider) connected() (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errProviderClosed()
	}
	if p.sess == nil {
		return nil, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Msg: "not connected"}
	}
	return p.sess, nil
}

// HasContract は銘柄に契約コードが設定されているかを返します。
func (p *Provider) HasContract(instrument string) bool {
	_, ok := p.cfg.Contract(instrument)
	return ok
}

func (p *Provider) contract(instrument string) (string, error) {
	c, ok := p.cfg.Contract(instrument)
	if !ok {
		return "", fmt.Errorf("%w: %q has no session contract", domain.ErrInvalidInstrument, instrument)
	}
	return c, nil
}

func errProviderClosed() error {
	return &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Msg: "provider closed"}
}

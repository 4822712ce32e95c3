package tqsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quote_backend/internal/feature/marketdata/domain"
	httpx "quote_backend/internal/platform/http"
)

const providerName = "tqsession"

// Token は取得したアクセストークンと失効時刻です。ExpiresAt がゼロ値なら失効時刻は不明です。
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authenticator はパスワードグラントでアクセストークンを取得します。
type Authenticator struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewAuthenticator は新しいAuthenticatorを生成します。
func NewAuthenticator(cfg Config, client *http.Client) *Authenticator {
	return &Authenticator{cfg: cfg, client: client, now: time.Now}
}

// Login は認証エンドポイントにユーザー名とパスワードを送りトークンを取得します。
//
// 資格情報の拒否（401/403、invalid_grant）は domain.ErrAuth、
// 到達不能や5xxは domain.ErrConnection / domain.ErrTimeout になります。
func (a *Authenticator) Login(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", a.cfg.ClientID)
	if a.cfg.ClientSecret != "" {
		form.Set("client_secret", a.cfg.ClientSecret)
	}
	form.Set("username", a.cfg.Username)
	form.Set("password", a.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("tqsession: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return Token{}, transportError(err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close auth response body", "error", err)
		}
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return Token{}, transportError(err)
	}
	var body tokenResponse
	_ = json.Unmarshal(b, &body)

	switch {
	case res.StatusCode == http.StatusUnauthorized,
		res.StatusCode == http.StatusForbidden,
		body.Error == "invalid_grant",
		body.Error == "unauthorized_client":
		return Token{}, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrAuth, Status: res.StatusCode, Msg: authMessage(body)}
	case res.StatusCode >= http.StatusInternalServerError:
		return Token{}, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrConnection, Status: res.StatusCode, Msg: authMessage(body)}
	case res.StatusCode != http.StatusOK:
		return Token{}, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrUpstreamRejection, Status: res.StatusCode, Msg: authMessage(body)}
	case body.AccessToken == "":
		return Token{}, &domain.UpstreamError{Provider: providerName, Kind: domain.ErrAuth, Status: res.StatusCode, Msg: "empty access token"}
	}

	return Token{AccessToken: body.AccessToken, ExpiresAt: a.expiry(body)}, nil
}

// expiry はトークンの exp クレームを署名検証なしで読み、無ければ expires_in を使います。
func (a *Authenticator) expiry(body tokenResponse) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(body.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if body.ExpiresIn > 0 {
		return a.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

func authMessage(body tokenResponse) string {
	if body.ErrorDescription != "" {
		return body.ErrorDescription
	}
	return body.Error
}

// transportError は応答を得られなかった失敗をタイムアウトと接続エラーに分類します。
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := domain.ErrConnection
	if httpx.IsTimeout(err) {
		kind = domain.ErrTimeout
	}
	return &domain.UpstreamError{Provider: providerName, Kind: kind, Err: err}
}

package webclient

import (
	"context"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nao1215/bloghub/internal/config"
)

// AuthClient はMicrosoft Entra IDとの認可コードフローを処理するクライアント。
// クライアントシークレットまたは証明書によるクライアント認証に対応する。
type AuthClient struct {
	// cfg はWebクライアントの設定。
	cfg *config.Client
	// httpClient はトークンエンドポイントとの通信に使用するHTTPクライアント。
	httpClient *http.Client
	// tokenEndpoint はトークンエンドポイントのURL。テストで差し替える。
	tokenEndpoint string
	// signKey は証明書認証で使用する秘密鍵。シークレット認証時はnil。
	signKey *rsa.PrivateKey
	// certThumbprint は証明書のSHA-1サムプリント（base64url形式）。
	certThumbprint string
}

// TokenResponse はトークンエンドポイントの正常レスポンス。
type TokenResponse struct {
	// AccessToken はAPI呼び出しに使用するアクセストークン。
	AccessToken string `json:"access_token"`
	// IDToken はユーザー情報を含むIDトークン。
	IDToken string `json:"id_token"`
	// RefreshToken はトークン更新用のリフレッシュトークン。
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn はアクセストークンの有効秒数。
	ExpiresIn int64 `json:"expires_in"`
	// TokenType はトークン種別（通常は"Bearer"）。
	TokenType string `json:"token_type"`
	// Scope は許可されたスコープ。
	Scope string `json:"scope"`
}

// tokenErrorResponse はトークンエンドポイントのエラーレスポンス。
type tokenErrorResponse struct {
	// Error はエラーコード。
	Error string `json:"error"`
	// ErrorDescription はエラーの詳細説明。
	ErrorDescription string `json:"error_description"`
}

// NewAuthClient は新しい認可クライアントを生成する。
// 証明書パスが設定されている場合は証明書と秘密鍵を読み込む。
func NewAuthClient(cfg *config.Client) (*AuthClient, error) {
	a := &AuthClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokenEndpoint: cfg.TokenEndpoint(),
	}
	if cfg.ClientCertPath != "" {
		if err := a.loadCertificate(cfg.ClientCertPath); err != nil {
			return nil, fmt.Errorf("クライアント証明書の読み込みに失敗: %w", err)
		}
	}
	return a, nil
}

// AuthorizeURL は認可エンドポイントへのリダイレクトURLを構築する。
// stateはCSRF対策のためコールバックで検証される。
func (a *AuthClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.cfg.RedirectURI)
	q.Set("response_mode", "query")
	q.Set("scope", strings.Join(a.cfg.Scopes(), " "))
	q.Set("state", state)
	return a.cfg.AuthorizeEndpoint() + "?" + q.Encode()
}

// ExchangeCode は認可コードをトークンに交換する。
func (a *AuthClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.cfg.RedirectURI)
	form.Set("scope", strings.Join(a.cfg.Scopes(), " "))

	if err := a.setClientAuth(form); err != nil {
		return nil, err
	}
	return a.postTokenEndpoint(ctx, form)
}

// RefreshToken はリフレッシュトークンで新しいトークンを取得する。
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", strings.Join(a.cfg.Scopes(), " "))

	if err := a.setClientAuth(form); err != nil {
		return nil, err
	}
	return a.postTokenEndpoint(ctx, form)
}

// LogoutURL はサインアウトエンドポイントへのリダイレクトURLを構築する。
func (a *AuthClient) LogoutURL(postLogoutRedirectURI string) string {
	q := url.Values{}
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	return a.cfg.LogoutEndpoint() + "?" + q.Encode()
}

// setClientAuth はクライアント認証パラメータをフォームに設定する。
// 証明書が読み込まれていればクライアントアサーション、なければシークレットを使用する。
func (a *AuthClient) setClientAuth(form url.Values) error {
	if a.signKey != nil {
		assertion, err := a.clientAssertion()
		if err != nil {
			return fmt.Errorf("クライアントアサーションの生成に失敗: %w", err)
		}
		form.Set("client_assertion_type", "urn:ietf:params:oauth:client-assertion-type:jwt-bearer")
		form.Set("client_assertion", assertion)
		return nil
	}
	if a.cfg.ClientSecret == "" {
		return errors.New("クライアントシークレットも証明書も設定されていません")
	}
	form.Set("client_secret", a.cfg.ClientSecret)
	return nil
}

// clientAssertion は証明書認証用の署名付きJWTを生成する。
// サムプリントをx5tヘッダーに設定し、トークンエンドポイントをaudとする。
func (a *AuthClient) clientAssertion() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud": a.tokenEndpoint,
		"iss": a.cfg.ClientID,
		"sub": a.cfg.ClientID,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
	})
	token.Header["x5t"] = a.certThumbprint
	return token.SignedString(a.signKey)
}

// postTokenEndpoint はトークンエンドポイントにフォームをPOSTする。
func (a *AuthClient) postTokenEndpoint(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("トークンリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("トークンエンドポイントへの接続に失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("トークンレスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var tokenErr tokenErrorResponse
		if err := json.Unmarshal(body, &tokenErr); err == nil && tokenErr.Error != "" {
			return nil, fmt.Errorf("トークン取得エラー: %s: %s", tokenErr.Error, tokenErr.ErrorDescription)
		}
		return nil, fmt.Errorf("トークン取得エラー: status=%d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("トークンレスポンスのデシリアライズに失敗: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("アクセストークンがレスポンスに含まれていません")
	}
	return &tokenResp, nil
}

// loadCertificate はPEMファイルから証明書と秘密鍵を読み込む。
func (a *AuthClient) loadCertificate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cert *x509.Certificate
	var key *rsa.PrivateKey
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		switch block.Type {
		case "CERTIFICATE":
			if cert == nil {
				cert, err = x509.ParseCertificate(block.Bytes)
				if err != nil {
					return fmt.Errorf("証明書の解析に失敗: %w", err)
				}
			}
		case "RSA PRIVATE KEY":
			key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return fmt.Errorf("秘密鍵の解析に失敗: %w", err)
			}
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return fmt.Errorf("秘密鍵の解析に失敗: %w", err)
			}
			rsaKey, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return errors.New("秘密鍵がRSA鍵ではありません")
			}
			key = rsaKey
		}
	}
	if cert == nil {
		return errors.New("PEMファイルに証明書が含まれていません")
	}
	if key == nil {
		return errors.New("PEMファイルに秘密鍵が含まれていません")
	}

	sum := sha1.Sum(cert.Raw)
	a.signKey = key
	a.certThumbprint = base64.RawURLEncoding.EncodeToString(sum[:])
	return nil
}

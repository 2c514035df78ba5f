// Package config は各サービスの設定を環境変数から読み込む。
// .envファイルが存在すれば読み込み、開発向けのデフォルト値を補完する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// 環境名の定数。Environmentフィールドはこのいずれかの値を取る。
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// API はAPIサービスの設定。
type API struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// TenantID はMicrosoft Entra IDのテナントID（GUID）。
	TenantID string
	// Audience はトークンのaudクレームに要求するApplication ID URI。
	Audience string
	// RequiredScope はAPIアクセスに必須のスコープ名。
	RequiredScope string
	// JWKSURL は鍵配布エンドポイントの上書きURL。空の場合はテナントIDから構築する。
	JWKSURL string
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string
	// Environment は実行環境（development/staging/production）。
	Environment string
	// LogLevel はログ出力レベル。
	LogLevel string
	// CORSOrigins はCORSで許可するオリジンの一覧。
	CORSOrigins []string
	// DefaultRateLimit は既定トラフィッククラスのウィンドウあたり許可リクエスト数。
	DefaultRateLimit int
}

// LoadAPI は環境変数からAPIサービスの設定を読み込む。
// 必須項目が欠けている場合、あるいは形式が不正な場合はエラーを返す。
func LoadAPI() (*API, error) {
	// .envは存在しなくてもよい
	_ = godotenv.Load()

	cfg := &API{
		Port:          getEnvOr("PORT", "8000"),
		TenantID:      os.Getenv("TENANT_ID"),
		Audience:      os.Getenv("API_APP_ID_URI"),
		RequiredScope: getEnvOr("REQUIRED_SCOPE", "access_as_user"),
		JWKSURL:       os.Getenv("JWKS_URL"),
		DatabasePath:  getEnvOr("DATABASE_PATH", "./blog_api.db"),
		Environment:   getEnvOr("ENVIRONMENT", EnvDevelopment),
		LogLevel:      getEnvOr("LOG_LEVEL", "info"),
		CORSOrigins:   splitAndTrim(getEnvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5000")),
	}

	if err := validateEnvironment(cfg.Environment); err != nil {
		return nil, err
	}
	if len(cfg.TenantID) < 36 {
		return nil, fmt.Errorf("TENANT_IDは有効なGUIDである必要があります: %q", cfg.TenantID)
	}
	if !strings.HasPrefix(cfg.Audience, "api://") {
		return nil, fmt.Errorf("API_APP_ID_URIは api:// で始まる必要があります: %q", cfg.Audience)
	}

	// レート制限の既定値は環境によって変える。開発環境は緩くする
	defaultLimit := 1000
	if cfg.Environment == EnvProduction {
		defaultLimit = 100
	}
	limit, err := getEnvIntOr("RATE_LIMIT_DEFAULT", defaultLimit)
	if err != nil {
		return nil, err
	}
	cfg.DefaultRateLimit = limit

	return cfg, nil
}

// JWKSEndpoint は鍵配布エンドポイントのURLを返す。
// JWKS_URLが設定されていればそれを優先し、なければテナントIDから構築する。
func (c *API) JWKSEndpoint() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", c.TenantID)
}

// Issuers は許可するissuerの一覧を返す。
// 現行のv2.0エンドポイントと旧形式のsts.windows.netの両方を受け入れる。
func (c *API) Issuers() []string {
	return []string{
		fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", c.TenantID),
		fmt.Sprintf("https://sts.windows.net/%s/", c.TenantID),
	}
}

// IsProduction は本番環境かどうかを返す。
func (c *API) IsProduction() bool { return c.Environment == EnvProduction }

// IsDevelopment は開発環境かどうかを返す。
func (c *API) IsDevelopment() bool { return c.Environment == EnvDevelopment }

// Client はWebクライアントサービスの設定。
type Client struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// TenantID はMicrosoft Entra IDのテナントID（GUID）。
	TenantID string
	// ClientID はアプリケーション登録のクライアントID。
	ClientID string
	// ClientSecret はクライアントシークレット。証明書認証を使う場合は空でよい。
	ClientSecret string
	// ClientCertPath はクライアント証明書（秘密鍵含むPEM）のパス。
	// 設定されている場合はシークレットの代わりにJWTクライアントアサーションを使う。
	ClientCertPath string
	// RedirectURI は認可コードフローのリダイレクトURI。
	RedirectURI string
	// APIScope はAPIへの委任スコープ（例: api://xxx/access_as_user）。
	APIScope string
	// APIBaseURL はAPIサービスのベースURL。
	APIBaseURL string
	// SessionSecret はセッションCookieの署名鍵。
	SessionSecret string
	// Environment は実行環境（development/staging/production）。
	Environment string
	// LogLevel はログ出力レベル。
	LogLevel string
}

// LoadClient は環境変数からWebクライアントの設定を読み込む。
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	cfg := &Client{
		Port:           getEnvOr("PORT", "5000"),
		TenantID:       os.Getenv("TENANT_ID"),
		ClientID:       os.Getenv("CLIENT_ID"),
		ClientSecret:   os.Getenv("CLIENT_SECRET"),
		ClientCertPath: os.Getenv("CLIENT_CERT_PATH"),
		RedirectURI:    getEnvOr("REDIRECT_URI", "http://localhost:5000/callback"),
		APIScope:       os.Getenv("API_SCOPE"),
		APIBaseURL:     getEnvOr("API_BASE_URL", "http://localhost:8000"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		Environment:    getEnvOr("ENVIRONMENT", EnvDevelopment),
		LogLevel:       getEnvOr("LOG_LEVEL", "info"),
	}

	if err := validateEnvironment(cfg.Environment); err != nil {
		return nil, err
	}
	if len(cfg.TenantID) < 36 {
		return nil, fmt.Errorf("TENANT_IDは有効なGUIDである必要があります: %q", cfg.TenantID)
	}
	if len(cfg.ClientID) < 36 {
		return nil, fmt.Errorf("CLIENT_IDは有効なGUIDである必要があります: %q", cfg.ClientID)
	}
	if cfg.ClientSecret == "" && cfg.ClientCertPath == "" {
		return nil, fmt.Errorf("CLIENT_SECRETとCLIENT_CERT_PATHのいずれかが必要です")
	}
	if cfg.APIScope == "" {
		return nil, fmt.Errorf("API_SCOPEが設定されていません")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRETが設定されていません")
	}

	return cfg, nil
}

// Authority はテナントの認可サーバーのベースURLを返す。
func (c *Client) Authority() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s", c.TenantID)
}

// AuthorizeEndpoint は認可エンドポイントのURLを返す。
func (c *Client) AuthorizeEndpoint() string {
	return c.Authority() + "/oauth2/v2.0/authorize"
}

// TokenEndpoint はトークンエンドポイントのURLを返す。
func (c *Client) TokenEndpoint() string {
	return c.Authority() + "/oauth2/v2.0/token"
}

// LogoutEndpoint はログアウトエンドポイントのURLを返す。
func (c *Client) LogoutEndpoint() string {
	return c.Authority() + "/oauth2/v2.0/logout"
}

// Scopes は認可リクエストで要求するスコープの一覧を返す。
func (c *Client) Scopes() []string {
	return []string{"openid", "profile", "email", c.APIScope}
}

// IsDevelopment は開発環境かどうかを返す。
func (c *Client) IsDevelopment() bool { return c.Environment == EnvDevelopment }

// validateEnvironment は環境名が既知の値であることを確認する。
func validateEnvironment(env string) error {
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return nil
	}
	return fmt.Errorf("ENVIRONMENTが不正です: %q (development/staging/productionのいずれか)", env)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvIntOr は整数の環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvIntOr(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%sは整数である必要があります: %q", key, v)
	}
	return n, nil
}

// splitAndTrim はカンマ区切りの文字列を分割して前後の空白を除去する。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

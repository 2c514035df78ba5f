package config

import (
	"strings"
	"testing"
)

const testGUID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"

// setAPIEnv はLoadAPIの必須環境変数を設定するヘルパー。
func setAPIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", testGUID)
	t.Setenv("API_APP_ID_URI", "api://"+testGUID)
}

// setClientEnv はLoadClientの必須環境変数を設定するヘルパー。
func setClientEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", testGUID)
	t.Setenv("CLIENT_ID", testGUID)
	t.Setenv("CLIENT_SECRET", "test-secret")
	t.Setenv("API_SCOPE", "api://"+testGUID+"/access_as_user")
	t.Setenv("SESSION_SECRET", "test-session-secret")
}

// TestLoadAPI はAPIサービス設定の読み込みを検証する。
func TestLoadAPI(t *testing.T) {
	t.Run("必須項目が揃っていれば既定値を補完して読み込む", func(t *testing.T) {
		setAPIEnv(t)

		cfg, err := LoadAPI()
		if err != nil {
			t.Fatalf("LoadAPIに失敗: %v", err)
		}
		if cfg.Port != "8000" {
			t.Errorf("Port: got %q, want 8000", cfg.Port)
		}
		if cfg.RequiredScope != "access_as_user" {
			t.Errorf("RequiredScope: got %q, want access_as_user", cfg.RequiredScope)
		}
		// シーダーの既定値と同じパスを指すこと
		if cfg.DatabasePath != "./blog_api.db" {
			t.Errorf("DatabasePath: got %q, want ./blog_api.db", cfg.DatabasePath)
		}
		if cfg.Environment != EnvDevelopment {
			t.Errorf("Environment: got %q, want %q", cfg.Environment, EnvDevelopment)
		}
		// 開発環境の既定レート制限は緩い
		if cfg.DefaultRateLimit != 1000 {
			t.Errorf("DefaultRateLimit: got %d, want 1000", cfg.DefaultRateLimit)
		}
	})

	t.Run("本番環境では既定レート制限が厳しくなる", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("ENVIRONMENT", EnvProduction)

		cfg, err := LoadAPI()
		if err != nil {
			t.Fatalf("LoadAPIに失敗: %v", err)
		}
		if cfg.DefaultRateLimit != 100 {
			t.Errorf("DefaultRateLimit: got %d, want 100", cfg.DefaultRateLimit)
		}
	})

	t.Run("テナントIDが不正な場合はエラーを返す", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("TENANT_ID", "short")

		if _, err := LoadAPI(); err == nil {
			t.Fatal("不正なTENANT_IDでエラーが返らない")
		}
	})

	t.Run("audienceがapi://で始まらない場合はエラーを返す", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("API_APP_ID_URI", "https://example.com")

		if _, err := LoadAPI(); err == nil {
			t.Fatal("不正なAPI_APP_ID_URIでエラーが返らない")
		}
	})

	t.Run("未知の環境名はエラーを返す", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("ENVIRONMENT", "qa")

		if _, err := LoadAPI(); err == nil {
			t.Fatal("不正なENVIRONMENTでエラーが返らない")
		}
	})

	t.Run("レート制限の上書き値が整数でない場合はエラーを返す", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("RATE_LIMIT_DEFAULT", "many")

		if _, err := LoadAPI(); err == nil {
			t.Fatal("不正なRATE_LIMIT_DEFAULTでエラーが返らない")
		}
	})

	t.Run("CORSオリジンをカンマ区切りで分割する", func(t *testing.T) {
		setAPIEnv(t)
		t.Setenv("CORS_ORIGINS", "http://a.example.com, http://b.example.com")

		cfg, err := LoadAPI()
		if err != nil {
			t.Fatalf("LoadAPIに失敗: %v", err)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example.com" {
			t.Errorf("CORSOrigins: got %v", cfg.CORSOrigins)
		}
	})
}

// TestAPIDerivedValues はAPI設定から導出されるURLを検証する。
func TestAPIDerivedValues(t *testing.T) {
	t.Parallel()

	cfg := &API{TenantID: testGUID}

	t.Run("JWKSエンドポイントをテナントIDから構築する", func(t *testing.T) {
		t.Parallel()
		want := "https://login.microsoftonline.com/" + testGUID + "/discovery/v2.0/keys"
		if got := cfg.JWKSEndpoint(); got != want {
			t.Errorf("JWKSEndpoint: got %q, want %q", got, want)
		}
	})

	t.Run("JWKS_URLが設定されていればそれを優先する", func(t *testing.T) {
		t.Parallel()
		override := &API{TenantID: testGUID, JWKSURL: "http://localhost:9999/keys"}
		if got := override.JWKSEndpoint(); got != "http://localhost:9999/keys" {
			t.Errorf("JWKSEndpoint: got %q", got)
		}
	})

	t.Run("現行と旧形式の両方のissuerを許可する", func(t *testing.T) {
		t.Parallel()
		issuers := cfg.Issuers()
		if len(issuers) != 2 {
			t.Fatalf("Issuers: got %d件, want 2件", len(issuers))
		}
		if !strings.HasSuffix(issuers[0], "/v2.0") {
			t.Errorf("現行issuer: got %q", issuers[0])
		}
		if !strings.HasPrefix(issuers[1], "https://sts.windows.net/") {
			t.Errorf("旧形式issuer: got %q", issuers[1])
		}
	})
}

// TestLoadClient はWebクライアント設定の読み込みを検証する。
func TestLoadClient(t *testing.T) {
	t.Run("必須項目が揃っていれば読み込みに成功する", func(t *testing.T) {
		setClientEnv(t)

		cfg, err := LoadClient()
		if err != nil {
			t.Fatalf("LoadClientに失敗: %v", err)
		}
		if cfg.Port != "5000" {
			t.Errorf("Port: got %q, want 5000", cfg.Port)
		}
		if cfg.RedirectURI != "http://localhost:5000/callback" {
			t.Errorf("RedirectURI: got %q", cfg.RedirectURI)
		}
	})

	t.Run("シークレットと証明書の両方がない場合はエラーを返す", func(t *testing.T) {
		setClientEnv(t)
		t.Setenv("CLIENT_SECRET", "")

		if _, err := LoadClient(); err == nil {
			t.Fatal("クライアント認証情報なしでエラーが返らない")
		}
	})

	t.Run("証明書パスがあればシークレットは省略できる", func(t *testing.T) {
		setClientEnv(t)
		t.Setenv("CLIENT_SECRET", "")
		t.Setenv("CLIENT_CERT_PATH", "/path/to/cert.pem")

		if _, err := LoadClient(); err != nil {
			t.Fatalf("証明書パスのみの設定でエラー: %v", err)
		}
	})

	t.Run("セッションシークレットがない場合はエラーを返す", func(t *testing.T) {
		setClientEnv(t)
		t.Setenv("SESSION_SECRET", "")

		if _, err := LoadClient(); err == nil {
			t.Fatal("SESSION_SECRETなしでエラーが返らない")
		}
	})

	t.Run("エンドポイントURLをテナントIDから構築する", func(t *testing.T) {
		setClientEnv(t)

		cfg, err := LoadClient()
		if err != nil {
			t.Fatalf("LoadClientに失敗: %v", err)
		}
		wantAuthority := "https://login.microsoftonline.com/" + testGUID
		if got := cfg.Authority(); got != wantAuthority {
			t.Errorf("Authority: got %q, want %q", got, wantAuthority)
		}
		if got := cfg.TokenEndpoint(); got != wantAuthority+"/oauth2/v2.0/token" {
			t.Errorf("TokenEndpoint: got %q", got)
		}
		scopes := cfg.Scopes()
		if len(scopes) != 4 || scopes[3] != cfg.APIScope {
			t.Errorf("Scopes: got %v", scopes)
		}
	})
}

package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"github.com/nao1215/bloghub/pkg/ratelimit"
	"github.com/nao1215/bloghub/pkg/tokenauth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// doGet はテスト用のGETリクエストを実行する。
func doGet(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestCorrelationID は相関IDミドルウェアを検証する。
func TestCorrelationID(t *testing.T) {
	t.Parallel()

	t.Run("相関IDがない場合は新規発行する", func(t *testing.T) {
		t.Parallel()
		router := gin.New()
		router.Use(CorrelationID())
		var inContext string
		router.GET("/", func(c *gin.Context) {
			inContext = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		w := doGet(router, "/", nil)
		header := w.Header().Get(CorrelationIDHeader)
		if header == "" {
			t.Fatal("相関IDヘッダーが設定されていない")
		}
		if inContext != header {
			t.Errorf("コンテキストの相関ID %q とヘッダー %q が一致しない", inContext, header)
		}
	})

	t.Run("受信した相関IDをそのまま引き継ぐ", func(t *testing.T) {
		t.Parallel()
		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := doGet(router, "/", map[string]string{CorrelationIDHeader: "req-12345"})
		if got := w.Header().Get(CorrelationIDHeader); got != "req-12345" {
			t.Errorf("相関ID: got %q, want req-12345", got)
		}
	})
}

// TestSecurityHeaders はセキュリティヘッダーミドルウェアを検証する。
func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doGet(router, "/", nil)
	wants := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "1; mode=block",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   "default-src 'self'",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
	}
	for key, want := range wants {
		if got := w.Header().Get(key); got != want {
			t.Errorf("%s: got %q, want %q", key, got, want)
		}
	}
}

// TestRateLimit はレート制限ミドルウェアを検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	newRouter := func(capacity int) *gin.Engine {
		cfg := ratelimit.SetConfig{
			Auth:    ratelimit.ClassConfig{Capacity: capacity, Window: time.Minute},
			Write:   ratelimit.ClassConfig{Capacity: capacity, Window: time.Minute},
			Read:    ratelimit.ClassConfig{Capacity: capacity, Window: time.Minute},
			Default: ratelimit.ClassConfig{Capacity: capacity, Window: time.Minute},
		}
		router := gin.New()
		router.Use(RateLimit(ratelimit.NewSet(cfg)))
		router.GET("/v1/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("制限内のリクエストにレート制限ヘッダーを付与する", func(t *testing.T) {
		t.Parallel()
		router := newRouter(5)

		w := doGet(router, "/v1/posts", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("X-RateLimit-Limit: got %q, want 5", got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
			t.Errorf("X-RateLimit-Remaining: got %q, want 4", got)
		}
		if got := w.Header().Get("X-RateLimit-Reset"); got == "" {
			t.Error("X-RateLimit-Resetが設定されていない")
		}
	})

	t.Run("制限超過時に429とRetry-Afterを返す", func(t *testing.T) {
		t.Parallel()
		router := newRouter(1)

		doGet(router, "/v1/posts", nil)
		w := doGet(router, "/v1/posts", nil)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if got := w.Header().Get("Retry-After"); got == "" {
			t.Error("Retry-Afterヘッダーが設定されていない")
		}

		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if body["error"] == "" {
			t.Error("エラーメッセージが空")
		}
	})

	t.Run("ヘルスチェックパスは制限しない", func(t *testing.T) {
		t.Parallel()
		router := newRouter(1)

		for i := 0; i < 10; i++ {
			w := doGet(router, "/health", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("%d番目のヘルスチェックが拒否された: %d", i+1, w.Code)
			}
		}
	})
}

// newAuthTestRouter はJWKSサーバーと検証ミドルウェア付きのルーターを構築する。
func newAuthTestRouter(t *testing.T) (*gin.Engine, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}

	jwkKey, err := jwk.FromRaw(key.Public())
	if err != nil {
		t.Fatalf("JWKの構築に失敗: %v", err)
	}
	if err := jwkKey.Set(jwk.KeyIDKey, "mw-test-key"); err != nil {
		t.Fatalf("kidの設定に失敗: %v", err)
	}
	if err := jwkKey.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("algの設定に失敗: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(jwkKey); err != nil {
		t.Fatalf("鍵セットへの追加に失敗: %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(ts.Close)

	validator := tokenauth.NewValidator(tokenauth.Config{
		JWKSURL:       ts.URL,
		Audience:      "api://mw-test",
		Issuers:       []string{"https://login.microsoftonline.com/mw-tenant/v2.0"},
		RequiredScope: "access_as_user",
	}, zap.NewNop())

	router := gin.New()
	router.Use(JWTAuth(validator))
	router.GET("/protected", func(c *gin.Context) {
		claims, _ := GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"oid": claims.OID, "context_oid": GetUserOID(c)})
	})
	return router, key
}

// signAuthToken はミドルウェアテスト用のRS256トークンを生成する。
func signAuthToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "mw-test-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}

// TestJWTAuth はBearerトークン検証ミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでクレームがコンテキストに設定される", func(t *testing.T) {
		t.Parallel()
		router, key := newAuthTestRouter(t)

		token := signAuthToken(t, key, jwt.MapClaims{
			"aud": "api://mw-test",
			"iss": "https://login.microsoftonline.com/mw-tenant/v2.0",
			"exp": time.Now().Add(time.Hour).Unix(),
			"oid": "oid-123",
			"scp": "access_as_user",
		})
		w := doGet(router, "/protected", map[string]string{"Authorization": "Bearer " + token})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, body=%s", w.Code, w.Body.String())
		}

		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		if body["oid"] != "oid-123" {
			t.Errorf("oid: got %v, want oid-123", body["oid"])
		}
		if body["context_oid"] != "oid-123" {
			t.Errorf("context_oid: got %v, want oid-123", body["context_oid"])
		}
	})

	t.Run("Authorizationヘッダーがない場合は401を返す", func(t *testing.T) {
		t.Parallel()
		router, _ := newAuthTestRouter(t)

		w := doGet(router, "/protected", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != `Bearer error="missing_token"` {
			t.Errorf("WWW-Authenticate: got %q", got)
		}
	})

	t.Run("Bearer形式でないヘッダーは401を返す", func(t *testing.T) {
		t.Parallel()
		router, _ := newAuthTestRouter(t)

		w := doGet(router, "/protected", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != `Bearer error="malformed_token"` {
			t.Errorf("WWW-Authenticate: got %q", got)
		}
	})

	t.Run("期限切れトークンは理由コード付きで401を返す", func(t *testing.T) {
		t.Parallel()
		router, key := newAuthTestRouter(t)

		token := signAuthToken(t, key, jwt.MapClaims{
			"aud": "api://mw-test",
			"iss": "https://login.microsoftonline.com/mw-tenant/v2.0",
			"exp": time.Now().Add(-time.Hour).Unix(),
			"oid": "oid-123",
			"scp": "access_as_user",
		})
		w := doGet(router, "/protected", map[string]string{"Authorization": "Bearer " + token})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != `Bearer error="expired"` {
			t.Errorf("WWW-Authenticate: got %q", got)
		}

		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("JSONのデコードに失敗: %v", err)
		}
		details, ok := body["details"].(map[string]any)
		if !ok || details["reason"] != "expired" {
			t.Errorf("details.reason: got %v, want expired", body["details"])
		}
	})
}

// TestRecovery はパニック回復ミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニックを500レスポンスに変換する", func(t *testing.T) {
		t.Parallel()
		router := gin.New()
		router.Use(Recovery(zap.NewNop(), false))
		router.GET("/panic", func(_ *gin.Context) { panic("意図的なパニック") })

		w := doGet(router, "/panic", nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if body := w.Body.String(); body == "" {
			t.Error("レスポンスボディが空")
		}
	})

	t.Run("本番モードではパニック内容を含めない", func(t *testing.T) {
		t.Parallel()
		router := gin.New()
		router.Use(Recovery(zap.NewNop(), false))
		router.GET("/panic", func(_ *gin.Context) { panic("秘密の内部情報") })

		w := doGet(router, "/panic", nil)
		if body := w.Body.String(); strings.Contains(body, "秘密の内部情報") {
			t.Errorf("本番モードのレスポンスにパニック内容が含まれている: %s", body)
		}
	})
}

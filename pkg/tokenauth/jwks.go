package tokenauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// jwksMaxResponseSize はJWKSレスポンスの最大読み取りサイズ。
const jwksMaxResponseSize = 1 << 20

// JWKSCache はリモートから取得した署名鍵セットのプロセス内キャッシュ。
// 初回の検証時に遅延取得し、TTLが設定されていれば期限切れ後に再取得する。
// 複数リクエストから同時に参照されるためRWMutexで保護する。
type JWKSCache struct {
	// url は鍵配布エンドポイントのURL。
	url string
	// ttl はキャッシュの有効期間。0の場合はプロセス終了まで保持する。
	ttl time.Duration
	// httpClient は鍵取得に使用するHTTPクライアント。
	httpClient *http.Client
	// logger は構造化ログ出力用のロガー。
	logger *zap.Logger

	mu        sync.RWMutex
	keys      *jsonWebKeySet
	lastFetch time.Time
}

// jsonWebKeySet はJWKSレスポンスのJSON構造。
type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// jsonWebKey はJWKS内の1つの公開鍵。RSA鍵の成分のみ扱う。
type jsonWebKey struct {
	// Kty は鍵種別（"RSA" のみサポート）。
	Kty string `json:"kty"`
	// Kid は鍵の識別子。トークンヘッダーのkidと照合する。
	Kid string `json:"kid,omitempty"`
	// Alg は署名アルゴリズム。
	Alg string `json:"alg,omitempty"`
	// Use は鍵用途（"sig" など）。
	Use string `json:"use,omitempty"`
	// N はRSA公開鍵のモジュラス（base64url）。
	N string `json:"n,omitempty"`
	// E はRSA公開鍵の指数（base64url）。
	E string `json:"e,omitempty"`
}

// NewJWKSCache は新しいJWKSキャッシュを生成する。
// ttlに0を指定すると一度取得した鍵セットをプロセス終了まで使い続ける。
func NewJWKSCache(url string, ttl time.Duration, timeout time.Duration, logger *zap.Logger) *JWKSCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JWKSCache{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Key は指定されたkidに対応するRSA公開鍵を返す。
// キャッシュが空、あるいはTTL切れの場合はリモートから再取得する。
func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	keys := c.keys
	lastFetch := c.lastFetch
	c.mu.RUnlock()

	if keys == nil || (c.ttl > 0 && time.Since(lastFetch) > c.ttl) {
		if err := c.Refresh(ctx); err != nil {
			// 再取得に失敗しても古い鍵セットが残っていればそれを使う
			if keys == nil {
				return nil, newValidationError(ReasonJWKSFetch, err)
			}
			c.logger.Warn("JWKSの再取得に失敗。キャッシュ済みの鍵を使用します",
				zap.Error(err),
				zap.Time("last_fetch", lastFetch),
			)
		}
		c.mu.RLock()
		keys = c.keys
		c.mu.RUnlock()
	}

	for i := range keys.Keys {
		if keys.Keys[i].Kid == kid {
			return keys.Keys[i].rsaPublicKey()
		}
	}
	return nil, newValidationError(ReasonUnknownKeyID, fmt.Errorf("kid %q に一致する鍵が見つかりません", kid))
}

// Refresh は鍵配布エンドポイントから鍵セットを取得してキャッシュを更新する。
func (c *JWKSCache) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("JWKSリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("JWKSの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKSエンドポイントが異常なステータスを返却: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, jwksMaxResponseSize))
	if err != nil {
		return fmt.Errorf("JWKSレスポンスの読み取りに失敗: %w", err)
	}

	var keySet jsonWebKeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return fmt.Errorf("JWKSのパースに失敗: %w", err)
	}

	c.mu.Lock()
	c.keys = &keySet
	c.lastFetch = time.Now()
	c.mu.Unlock()

	c.logger.Info("JWKSを取得しました",
		zap.String("url", c.url),
		zap.Int("key_count", len(keySet.Keys)),
	)
	return nil
}

// LastFetch は最後に取得へ成功した時刻を返す。未取得の場合はゼロ値。
func (c *JWKSCache) LastFetch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFetch
}

// URL は鍵配布エンドポイントのURLを返す。
func (c *JWKSCache) URL() string { return c.url }

// rsaPublicKey はJWKをRSA公開鍵に変換する。
func (k *jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("RSA以外の鍵種別には対応していません: %s", k.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("モジュラスのデコードに失敗: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("指数のデコードに失敗: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Config はValidatorの設定。
type Config struct {
	// JWKSURL は署名鍵セットを配布するエンドポイントのURL。
	JWKSURL string
	// Audience はトークンのaudクレームに要求する値。
	Audience string
	// Issuers は許可するissuerの一覧。現行と旧形式の両エンドポイントを含める。
	Issuers []string
	// RequiredScope はアクセスに必須のスコープあるいはロール名。
	RequiredScope string
	// HTTPTimeout はJWKS取得のタイムアウト。ゼロ値の場合は10秒。
	HTTPTimeout time.Duration
	// CacheTTL はJWKSキャッシュの有効期間。0の場合はプロセス終了まで保持する。
	CacheTTL time.Duration
}

// Validator はBearerトークンを検証する。
// 署名・有効期限・audienceの検証後、issuerの許可リスト照合と
// 必須スコープの確認を行う。issuerは署名検証済みのクレームからのみ読み取る。
type Validator struct {
	cfg    Config
	cache  *JWKSCache
	parser *jwt.Parser
	logger *zap.Logger
}

// NewValidator は新しいValidatorを生成する。
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		cfg:   cfg,
		cache: NewJWKSCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPTimeout, logger),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// JWKS は内部のJWKSキャッシュを返す。ヘルスチェックで到達性確認に使用する。
func (v *Validator) JWKS() *JWKSCache { return v.cache }

// Validate はトークン文字列を検証し、成功時はクレームセットを返す。
// 失敗時は理由コード付きの*ValidationErrorを返す。
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, newValidationError(ReasonUnknownKeyID, errors.New("トークンヘッダーにkidがありません"))
		}
		return v.cache.Key(ctx, kid)
	})
	if err != nil {
		return nil, v.mapParseError(err)
	}
	if !token.Valid {
		return nil, newValidationError(ReasonBadSignature, nil)
	}

	// issuerは署名検証済みのクレームから読み取り、許可リストと照合する
	if !v.issuerAllowed(claims.Issuer) {
		return nil, newValidationError(ReasonIssuerMismatch,
			fmt.Errorf("issuer %q は許可リストに含まれていません", claims.Issuer))
	}

	if !claims.HasScope(v.cfg.RequiredScope) {
		return nil, newValidationError(ReasonMissingScope,
			fmt.Errorf("必須スコープ %q が付与されていません", v.cfg.RequiredScope))
	}

	v.logger.Debug("トークン検証に成功",
		zap.String("oid", claims.OID),
		zap.String("issuer", claims.Issuer),
	)
	return claims, nil
}

// issuerAllowed はissuerが許可リストに含まれるか判定する。
func (v *Validator) issuerAllowed(issuer string) bool {
	for _, allowed := range v.cfg.Issuers {
		if issuer == allowed {
			return true
		}
	}
	return false
}

// mapParseError はgolang-jwtのパースエラーを理由コード付きエラーに変換する。
func (v *Validator) mapParseError(err error) error {
	// JWKS取得失敗や鍵不一致はkeyfuncが返したエラーをそのまま使う
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newValidationError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newValidationError(ReasonAudienceMismatch, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newValidationError(ReasonBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newValidationError(ReasonMalformedToken, err)
	default:
		return newValidationError(ReasonMalformedToken, err)
	}
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/bloghub/pkg/tokenauth"
)

// contextKeyClaims はGinコンテキストに検証済みクレームを格納するキー。
const contextKeyClaims = "token_claims"

// contextKeyUserOID はGinコンテキストにユーザーのオブジェクトIDを格納するキー。
const contextKeyUserOID = "user_oid"

// JWTAuth はBearerトークンをJWKSで検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにクレームセットとユーザーOIDを設定する。
// 失敗した場合は理由コード付きの401レスポンスを返す。
func JWTAuth(validator *tokenauth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, tokenauth.ReasonMissingToken, "Authorizationヘッダーが必要です")
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			abortUnauthorized(c, tokenauth.ReasonMalformedToken, "Bearer トークン形式が不正です")
			return
		}

		claims, err := validator.Validate(c.Request.Context(), tokenString)
		if err != nil {
			reason := tokenauth.ReasonMalformedToken
			var verr *tokenauth.ValidationError
			if errors.As(err, &verr) {
				reason = verr.Reason
			}
			abortUnauthorized(c, reason, "トークンが無効です")
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Set(contextKeyUserOID, claims.OID)
		c.Next()
	}
}

// abortUnauthorized は401レスポンスとWWW-Authenticateヘッダーを設定して中断する。
func abortUnauthorized(c *gin.Context, reason tokenauth.Reason, message string) {
	c.Header("WWW-Authenticate", fmt.Sprintf("Bearer error=%q", string(reason)))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   message,
		"details": gin.H{"reason": string(reason)},
	})
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetClaims(c *gin.Context) (*tokenauth.Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokenauth.Claims)
	return claims, ok
}

// GetUserOID はGinコンテキストからユーザーのオブジェクトIDを取得する。
// 未認証の場合は空文字列を返す。
func GetUserOID(c *gin.Context) string {
	v, _ := c.Get(contextKeyUserOID)
	if oid, ok := v.(string); ok {
		return oid
	}
	return ""
}

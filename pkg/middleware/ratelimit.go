package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/bloghub/pkg/ratelimit"
)

// rateLimitBypassPaths はレート制限を適用しないパスの集合。
// ヘルスチェックは監視システムから高頻度で呼ばれるため対象外とする。
var rateLimitBypassPaths = map[string]struct{}{
	"/health":       {},
	"/health/live":  {},
	"/health/ready": {},
}

// RateLimit はトラフィッククラス別のレート制限を適用するGinミドルウェアを返す。
// クライアントはIPアドレスで識別し、認証済みであればユーザーOIDを付加する。
// 制限超過時は429とRetry-Afterヘッダーを返す。
func RateLimit(set *ratelimit.Set) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := rateLimitBypassPaths[path]; ok {
			c.Next()
			return
		}

		key := c.ClientIP()
		if oid := GetUserOID(c); oid != "" {
			key += ":" + oid
		}

		allowed, info := set.Allow(path, c.Request.Method, key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.Reset, 10))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(info.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエスト数が上限を超えました",
				"details": gin.H{
					"retry_after": info.RetryAfter,
					"limit":       info.Limit,
				},
			})
			return
		}

		c.Next()
	}
}

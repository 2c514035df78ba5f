package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader は相関IDを伝播するHTTPヘッダー名。
const CorrelationIDHeader = "X-Correlation-ID"

// contextKeyCorrelationID はGinコンテキストに相関IDを格納するキー。
const contextKeyCorrelationID = "correlation_id"

// CorrelationID は各リクエストに相関IDを割り当てるGinミドルウェアを返す。
// リクエストヘッダーに相関IDがあればそれを引き継ぎ、なければ新規に生成する。
// 相関IDはレスポンスヘッダーとログに含め、リクエストの追跡に使用する。
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(contextKeyCorrelationID, correlationID)
		c.Header(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

// GetCorrelationID はGinコンテキストから相関IDを取得する。
// CorrelationIDミドルウェアが適用されていない場合は空文字列を返す。
func GetCorrelationID(c *gin.Context) string {
	v, _ := c.Get(contextKeyCorrelationID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}

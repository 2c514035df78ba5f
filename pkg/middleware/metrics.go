package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// httpRequestsTotal はルート・メソッド・ステータス別のリクエスト数。
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "ルート・メソッド・ステータスコード別のHTTPリクエスト総数",
		},
		[]string{"method", "route", "status"},
	)

	// httpRequestDuration はルート・メソッド別の処理時間。
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bloghub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTPリクエストの処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Metrics はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// ルートラベルにはパスパラメータを展開しないルート定義を使用する。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// 未登録パスへのリクエストはラベルの濫造を防ぐためまとめる
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler はPrometheus形式のメトリクスを公開するハンドラを返す。
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

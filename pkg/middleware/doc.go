// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 相関IDの割り当て、セキュリティヘッダーの付与、構造化リクエストログ、
// トラフィッククラス別レート制限、JWKSによるBearerトークン検証、
// パニックリカバリ、CORS設定、Prometheusメトリクス収集を含む。
// 適用順序には意味がある: リカバリが最外周、相関IDはログより先、
// レート制限はハンドラより先に適用すること。
package middleware

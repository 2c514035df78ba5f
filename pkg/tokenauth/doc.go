// Package tokenauth はJWKSを用いたBearerトークンの検証を提供する。
//
// リモートの鍵配布エンドポイントから署名鍵セットを取得・キャッシュし、
// アクセストークンの署名・有効期限・audience・issuer・スコープを検証する。
// 検証失敗は理由コード付きのエラーとして返し、HTTP層で401に変換する。
package tokenauth

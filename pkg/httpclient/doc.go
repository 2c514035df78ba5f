// Package httpclient はバックエンドAPIへのHTTP通信を行うクライアントを提供する。
//
// WebクライアントがブログAPIを呼び出す際に使用する。
// コンテキストに設定されたアクセストークンをAuthorizationヘッダーとして伝播し、
// APIのエラーレスポンスをステータスコード付きの型付きエラーに変換する。
package httpclient

// Package ratelimit はトークンバケット方式のレート制限を提供する。
//
// クライアント識別子ごとにバケットを保持し、経過時間に比例してトークンを
// 補充する。認証・読み取り・書き込みといったトラフィッククラスごとに
// 独立した容量とウィンドウを設定できる。
package ratelimit

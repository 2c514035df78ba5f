// Package webclient はブログAPIを利用するサーバーサイドレンダリングのWebクライアントを提供する。
//
// Microsoft Entra IDの認可コードフローでユーザーをログインさせ、
// 取得したアクセストークンをCookieセッションとして保持し、
// ブログAPIの呼び出し時にBearerトークンとして委任する。
package webclient

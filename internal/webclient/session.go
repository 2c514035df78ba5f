package webclient

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// sessionCookieName はログインセッションのCookie名。
	sessionCookieName = "bloghub_session"
	// stateCookieName は認可コードフローのstate検証用Cookie名。
	stateCookieName = "bloghub_oauth_state"
	// flashCookieName はフラッシュメッセージのCookie名。
	flashCookieName = "bloghub_flash"
	// sessionDuration はセッションCookieの有効期間。
	sessionDuration = 8 * time.Hour
	// stateDuration はstate Cookieの有効期間。
	stateDuration = 10 * time.Minute
)

// ErrNoSession はセッションが存在しない、または無効な場合のエラー。
var ErrNoSession = errors.New("セッションが存在しません")

// Session はログイン中のユーザーのセッション情報。
type Session struct {
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string
	// Name は表示名。
	Name string
	// Email はメールアドレス。
	Email string
	// AccessToken はAPI呼び出し用のアクセストークン。
	AccessToken string
	// RefreshToken はトークン更新用のリフレッシュトークン。
	RefreshToken string
	// TokenExpiry はアクセストークンの失効時刻。
	TokenExpiry time.Time
}

// sessionClaims はセッションCookieに格納するJWTクレーム。
type sessionClaims struct {
	jwt.RegisteredClaims
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string `json:"oid"`
	// Name は表示名。
	Name string `json:"name,omitempty"`
	// Email はメールアドレス。
	Email string `json:"email,omitempty"`
	// AccessToken はAPI呼び出し用のアクセストークン。
	AccessToken string `json:"at"`
	// RefreshToken はトークン更新用のリフレッシュトークン。
	RefreshToken string `json:"rt,omitempty"`
	// TokenExpiry はアクセストークンの失効時刻（Unix秒）。
	TokenExpiry int64 `json:"te"`
}

// SessionManager はHMAC署名付きJWTによるCookieセッションを管理する。
type SessionManager struct {
	// secret はHMAC-SHA256の署名鍵。
	secret []byte
	// secure はCookieにSecure属性を付けるかどうか。
	secure bool
}

// NewSessionManager は新しいセッションマネージャを生成する。
// 開発環境ではSecure属性を付けない。
func NewSessionManager(secret string, secure bool) *SessionManager {
	return &SessionManager{secret: []byte(secret), secure: secure}
}

// Issue はセッションをJWTとして署名しCookieに設定する。
func (m *SessionManager) Issue(c *gin.Context, sess *Session) error {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.OID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionDuration)),
		},
		OID:          sess.OID,
		Name:         sess.Name,
		Email:        sess.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenExpiry:  sess.TokenExpiry.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, signed, int(sessionDuration.Seconds()), "/", "", m.secure, true)
	return nil
}

// Get はCookieからセッションを復元する。
// Cookieが存在しない、署名が不正、または期限切れの場合はErrNoSessionを返す。
func (m *SessionManager) Get(c *gin.Context) (*Session, error) {
	raw, err := c.Cookie(sessionCookieName)
	if err != nil || raw == "" {
		return nil, ErrNoSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名アルゴリズム: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoSession
	}

	return &Session{
		OID:          claims.OID,
		Name:         claims.Name,
		Email:        claims.Email,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		TokenExpiry:  time.Unix(claims.TokenExpiry, 0),
	}, nil
}

// Clear はセッションCookieを削除する。
func (m *SessionManager) Clear(c *gin.Context) {
	c.SetCookie(sessionCookieName, "", -1, "/", "", m.secure, true)
}

// NewState はCSRF対策のstate値を生成しCookieに保存する。
func (m *SessionManager) NewState(c *gin.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("stateの生成に失敗: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, int(stateDuration.Seconds()), "/", "", m.secure, true)
	return state, nil
}

// VerifyState はコールバックで受け取ったstateをCookieの値と照合する。
// 照合後はCookieを削除する。
func (m *SessionManager) VerifyState(c *gin.Context, state string) bool {
	saved, err := c.Cookie(stateCookieName)
	c.SetCookie(stateCookieName, "", -1, "/", "", m.secure, true)
	if err != nil || saved == "" || state == "" {
		return false
	}
	return saved == state
}

// SetFlash は次のリクエストで表示するフラッシュメッセージを設定する。
func (m *SessionManager) SetFlash(c *gin.Context, message string) {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(message))
	c.SetCookie(flashCookieName, encoded, 60, "/", "", m.secure, true)
}

// PopFlash はフラッシュメッセージを取得してCookieを削除する。
// メッセージがない場合は空文字列を返す。
func (m *SessionManager) PopFlash(c *gin.Context) string {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return ""
	}
	c.SetCookie(flashCookieName, "", -1, "/", "", m.secure, true)
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

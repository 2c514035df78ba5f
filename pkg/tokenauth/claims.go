package tokenauth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はアクセストークンから取り出すクレームセット。
// Microsoft Entra IDのアクセストークンが持つクレームを型付きで表す。
type Claims struct {
	jwt.RegisteredClaims
	// OID はユーザーのオブジェクトID。APIにおけるユーザーの一意識別子。
	OID string `json:"oid,omitempty"`
	// Name はユーザーの表示名。
	Name string `json:"name,omitempty"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email,omitempty"`
	// PreferredUsername は優先ユーザー名（通常はUPN）。
	PreferredUsername string `json:"preferred_username,omitempty"`
	// Scope は委任されたスコープのスペース区切り文字列（scpクレーム）。
	Scope string `json:"scp,omitempty"`
	// Roles はアプリケーションロールの一覧（rolesクレーム）。
	Roles []string `json:"roles,omitempty"`
}

// Scopes は付与されたスコープの一覧を返す。
// scpクレームが空の場合はrolesクレームにフォールバックする。
func (c *Claims) Scopes() []string {
	if c.Scope != "" {
		return strings.Fields(c.Scope)
	}
	return c.Roles
}

// HasScope は指定されたスコープあるいはロールが付与されているか判定する。
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

package tokenauth

import "fmt"

// Reason はトークン検証が失敗した理由を表すコード。
// HTTPレスポンスのWWW-Authenticateヘッダーとエラーボディに含める。
type Reason string

const (
	// ReasonMissingToken はトークンが提示されなかったことを表す。
	ReasonMissingToken Reason = "missing_token"
	// ReasonMalformedToken はトークンの形式が不正であることを表す。
	ReasonMalformedToken Reason = "malformed_token"
	// ReasonJWKSFetch は署名鍵セットの取得に失敗したことを表す。
	ReasonJWKSFetch Reason = "jwks_fetch"
	// ReasonUnknownKeyID はトークンのkidに一致する鍵が存在しないことを表す。
	ReasonUnknownKeyID Reason = "unknown_kid"
	// ReasonBadSignature は署名検証に失敗したことを表す。
	ReasonBadSignature Reason = "bad_signature"
	// ReasonExpired はトークンの有効期限が切れていることを表す。
	ReasonExpired Reason = "expired"
	// ReasonAudienceMismatch はaudienceクレームが一致しないことを表す。
	ReasonAudienceMismatch Reason = "audience_mismatch"
	// ReasonIssuerMismatch はissuerが許可リストに含まれないことを表す。
	ReasonIssuerMismatch Reason = "issuer_mismatch"
	// ReasonMissingScope は必須スコープが付与されていないことを表す。
	ReasonMissingScope Reason = "missing_scope"
)

// ValidationError はトークン検証の失敗を理由コード付きで表すエラー。
type ValidationError struct {
	// Reason は失敗理由のコード。
	Reason Reason
	// Err は原因となった下位のエラー。nilの場合もある。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("トークン検証に失敗 (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("トークン検証に失敗 (%s)", e.Reason)
}

// Unwrap は原因となったエラーを返す。
func (e *ValidationError) Unwrap() error { return e.Err }

// newValidationError は理由コードと原因エラーからValidationErrorを生成する。
func newValidationError(reason Reason, err error) *ValidationError {
	return &ValidationError{Reason: reason, Err: err}
}

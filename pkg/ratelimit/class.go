package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Class はリクエストが属するトラフィッククラス。
// クラスごとに独立したLimiterを割り当てる。
type Class string

const (
	// ClassAuth は認証関連エンドポイントのクラス。最も厳しい制限を課す。
	ClassAuth Class = "auth"
	// ClassWrite は書き込み操作のクラス。
	ClassWrite Class = "write"
	// ClassRead は読み取り操作のクラス。
	ClassRead Class = "read"
	// ClassDefault は上記いずれにも該当しないリクエストのクラス。
	ClassDefault Class = "default"
)

// ClassOf はリクエストのパスとHTTPメソッドからトラフィッククラスを決定する。
// 認証関連のパスが最優先、次にメソッドで書き込みと読み取りを分ける。
func ClassOf(path, method string) Class {
	if strings.Contains(path, "login") || strings.Contains(path, "callback") || strings.Contains(path, "token") {
		return ClassAuth
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return ClassWrite
	case http.MethodGet:
		return ClassRead
	}
	return ClassDefault
}

// ClassConfig は1つのトラフィッククラスの容量とウィンドウの組。
type ClassConfig struct {
	// Capacity はウィンドウあたりの許可リクエスト数。
	Capacity int
	// Window は補充の基準となる時間幅。
	Window time.Duration
}

// SetConfig はクラスごとのレート制限設定。
type SetConfig struct {
	// Auth は認証クラスの設定。
	Auth ClassConfig
	// Write は書き込みクラスの設定。
	Write ClassConfig
	// Read は読み取りクラスの設定。
	Read ClassConfig
	// Default は既定クラスの設定。
	Default ClassConfig
}

// DefaultSetConfig は本番向けの既定設定を返す。
// defaultCapacityには既定クラスのウィンドウあたり許可数を指定する。
func DefaultSetConfig(defaultCapacity int) SetConfig {
	window := time.Minute
	return SetConfig{
		Auth:    ClassConfig{Capacity: 10, Window: window},
		Write:   ClassConfig{Capacity: 30, Window: window},
		Read:    ClassConfig{Capacity: 100, Window: window},
		Default: ClassConfig{Capacity: defaultCapacity, Window: window},
	}
}

// Set はトラフィッククラスごとのLimiterをまとめたもの。
type Set struct {
	limiters map[Class]*Limiter
}

// NewSet は設定からクラスごとのLimiterを構築する。
func NewSet(cfg SetConfig) *Set {
	return &Set{
		limiters: map[Class]*Limiter{
			ClassAuth:    New(cfg.Auth.Capacity, cfg.Auth.Window),
			ClassWrite:   New(cfg.Write.Capacity, cfg.Write.Window),
			ClassRead:    New(cfg.Read.Capacity, cfg.Read.Window),
			ClassDefault: New(cfg.Default.Capacity, cfg.Default.Window),
		},
	}
}

// Allow はリクエストのパス・メソッドからクラスを選び、keyに対して判定する。
func (s *Set) Allow(path, method, key string) (bool, Info) {
	return s.Limiter(ClassOf(path, method)).Allow(key)
}

// Limiter は指定クラスのLimiterを返す。未知のクラスは既定クラス扱い。
func (s *Set) Limiter(class Class) *Limiter {
	if l, ok := s.limiters[class]; ok {
		return l
	}
	return s.limiters[ClassDefault]
}

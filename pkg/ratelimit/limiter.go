package ratelimit

import (
	"sync"
	"time"
)

// Info はレート制限の判定結果に付随する情報。
// レスポンスのX-RateLimit-*ヘッダーとRetry-Afterヘッダーに使用する。
type Info struct {
	// Limit はウィンドウあたりの最大リクエスト数。
	Limit int
	// Remaining は現在のバケットに残っているトークン数（切り捨て）。
	Remaining int
	// Reset はバケットが補充される時刻のUNIX秒。
	Reset int64
	// RetryAfter は拒否された場合に再試行まで待つべき秒数。許可時は0。
	RetryAfter int
}

// bucket はクライアント識別子ごとのトークンバケット。
// トークン数は容量を超えない。経過時間に比例して補充される。
type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// Limiter は1つのトラフィッククラスに対するトークンバケット式レート制限。
// バケットのマップは複数リクエストから並行に更新されるためmutexで保護する。
type Limiter struct {
	// capacity はバケットの容量（ウィンドウあたりの許可リクエスト数）。
	capacity int
	// window は補充の基準となる時間幅。
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	// now は現在時刻の取得関数。テストで差し替える。
	now func() time.Time
}

// New は容量capacityとウィンドウwindowのLimiterを生成する。
func New(capacity int, window time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		window:   window,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow はkeyで識別されるクライアントのリクエストを許可するか判定する。
// バケットが存在しなければ満杯の状態で作成する。許可時はトークンを1消費する。
func (l *Limiter) Allow(key string) (bool, Info) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.capacity), lastUpdate: now}
		l.buckets[key] = b
	}

	// 経過時間に比例してトークンを補充する。容量を超えてはならない
	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens += elapsed / l.window.Seconds() * float64(l.capacity)
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.lastUpdate = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	info := Info{
		Limit:     l.capacity,
		Remaining: int(b.tokens),
		Reset:     b.lastUpdate.Add(l.window).Unix(),
	}
	if !allowed {
		// 不足分のトークンが補充されるまでの時間を再試行待ち時間とする
		info.RetryAfter = int((1 - b.tokens) * l.window.Seconds() / float64(l.capacity))
	}
	return allowed, info
}

// Capacity はバケットの容量を返す。
func (l *Limiter) Capacity() int { return l.capacity }

// Window は補充ウィンドウを返す。
func (l *Limiter) Window() time.Duration { return l.window }

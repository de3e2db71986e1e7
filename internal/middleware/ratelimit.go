package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	SyncRate        rate.Limit    // 同期実行のレート（req/sec）
	SyncBurst       int           // 同期実行のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig はreq/min単位の設定値からRateLimiterConfigを生成する。
func NewRateLimiterConfig(generalPerMin, syncPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		SyncRate:        rate.Limit(float64(syncPerMin) / 60.0),
		SyncBurst:       syncPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// API全般の制限と、プロバイダー呼び出しを伴う同期実行の制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.Mutex
	generalLimiters map[string]*clientLimiter

	syncMu       sync.Mutex
	syncLimiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*clientLimiter),
		syncLimiters:    make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop はクリーンアップのゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.generalLimiter)
}

// SyncMiddleware は同期実行のレート制限ミドルウェアを返す。
// 同期はプロバイダーAPI呼び出しを伴うため、全般よりも厳しい制限を適用する。
func (rl *RateLimiter) SyncMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.syncLimiter)
}

func (rl *RateLimiter) middleware(limiterFor func(string) *rate.Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(clientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// generalLimiter はクライアントIPのAPI全般リミッターを取得・生成する。
func (rl *RateLimiter) generalLimiter(ip string) *rate.Limiter {
	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	cl, ok := rl.generalLimiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)}
		rl.generalLimiters[ip] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// syncLimiter はクライアントIPの同期実行リミッターを取得・生成する。
func (rl *RateLimiter) syncLimiter(ip string) *rate.Limiter {
	rl.syncMu.Lock()
	defer rl.syncMu.Unlock()

	cl, ok := rl.syncLimiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.config.SyncRate, rl.config.SyncBurst)}
		rl.syncLimiters[ip] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// cleanupLoop は一定間隔で長時間アクセスのないエントリを破棄する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.CleanupInterval)
			rl.generalMu.Lock()
			for ip, cl := range rl.generalLimiters {
				if cl.lastAccess.Before(cutoff) {
					delete(rl.generalLimiters, ip)
				}
			}
			rl.generalMu.Unlock()

			rl.syncMu.Lock()
			for ip, cl := range rl.syncLimiters {
				if cl.lastAccess.Before(cutoff) {
					delete(rl.syncLimiters, ip)
				}
			}
			rl.syncMu.Unlock()
		}
	}
}

// clientIP はリクエスト元のIPアドレスを取得する。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

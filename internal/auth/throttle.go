package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttleEntry はメールアドレス単位のリミッターを保持する。
type throttleEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// loginThrottle はメールアドレス単位でログイン試行を制限する。
// burst回の連続試行を許容し、以降はinterval毎に1回ずつ回復する。
type loginThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	burst   int
	limit   rate.Limit
	done    chan struct{}
}

const throttleIdleTTL = 10 * time.Minute

func newLoginThrottle(burst int, interval time.Duration) *loginThrottle {
	t := &loginThrottle{
		entries: make(map[string]*throttleEntry),
		burst:   burst,
		limit:   rate.Every(interval),
		done:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Allow は指定メールアドレスのログイン試行を許可するかを返す。
func (t *loginThrottle) Allow(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[email]
	if !ok {
		entry = &throttleEntry{
			limiter: rate.NewLimiter(t.limit, t.burst),
		}
		t.entries[email] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

// Reset はログイン成功時に試行カウントをリセットする。
func (t *loginThrottle) Reset(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, email)
}

// Stop はクリーンアップ処理を停止する。
func (t *loginThrottle) Stop() {
	close(t.done)
}

// cleanupLoop は一定間隔でアイドル状態のエントリを削除する。
func (t *loginThrottle) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.done:
			return
		}
	}
}

func (t *loginThrottle) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-throttleIdleTTL)
	for email, entry := range t.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(t.entries, email)
		}
	}
}

package middleware

import (
	"sync"
	"time"
)

// windowEntry はタイムスタンプ列とその破棄期限を保持する。
type windowEntry struct {
	timestamps []time.Time
	expiresAt  time.Time
}

// MemoryWindowStore はWindowStoreのプロセス内メモリ実装。
// 全キーを単一のミューテックスで保護する。
// バックグラウンドで期限切れエントリのクリーンアップを行う。
//
// プロセス再起動で状態は失われるため、レート制限の保証は
// 単一プロセス内でのみ成立する。
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	blocks  map[string]time.Time

	stopCh chan struct{}
	now    func() time.Time
}

// NewMemoryWindowStore はMemoryWindowStoreを生成する。
// cleanupIntervalごとに期限切れエントリを削除するゴルーチンを開始する。
func NewMemoryWindowStore(cleanupInterval time.Duration) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows: make(map[string]*windowEntry),
		blocks:  make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go s.cleanupLoop(cleanupInterval)

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *MemoryWindowStore) Stop() {
	close(s.stopCh)
}

// Window は指定キーのタイムスタンプ列を返す。期限切れエントリはnil扱い。
func (s *MemoryWindowStore) Window(key string) []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.windows[key]
	if !ok {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.windows, key)
		return nil
	}
	return entry.timestamps
}

// SetWindow はタイムスタンプ列をTTL付きで保存する。
func (s *MemoryWindowStore) SetWindow(key string, timestamps []time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows[key] = &windowEntry{
		timestamps: timestamps,
		expiresAt:  s.now().Add(ttl),
	}
}

// Blocked は指定キーのブロック解除時刻と、現在ブロック中かを返す。
// 期限切れのブロックフラグは読み取り時に破棄される（受動的TTL解除）。
func (s *MemoryWindowStore) Blocked(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return time.Time{}, false
	}
	if !s.now().Before(until) {
		delete(s.blocks, key)
		return time.Time{}, false
	}
	return until, true
}

// Block はブロックフラグをset-onceで設定する。
// 既に有効なブロックが存在する場合は上書きせずfalseを返すため、
// 並行した超過検出がブロック期限を繰り返し延長することはない。
func (s *MemoryWindowStore) Block(key string, until time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.blocks[key]; ok && s.now().Before(existing) {
		return false
	}
	s.blocks[key] = until
	return true
}

// ActiveWindowCount は現在保持しているウィンドウエントリ数を返す。
// テストおよびメトリクス用。
func (s *MemoryWindowStore) ActiveWindowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (s *MemoryWindowStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は期限切れのウィンドウとブロックフラグを削除する。
func (s *MemoryWindowStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.windows {
		if now.After(entry.expiresAt) {
			delete(s.windows, key)
		}
	}
	for key, until := range s.blocks {
		if !now.Before(until) {
			delete(s.blocks, key)
		}
	}
}

// compile-time interface check
var _ WindowStore = (*MemoryWindowStore)(nil)

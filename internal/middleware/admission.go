package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// AdmissionConfig はアドミッションフィルタ（レート制限）の設定を保持する。
type AdmissionConfig struct {
	MaxRequests int           // ウィンドウ内の最大リクエスト数。既定 60
	Window      time.Duration // スライディングウィンドウ幅。既定 1分
	BlockFor    time.Duration // 超過時のブロック継続時間。既定 5分
	IdleTTL     time.Duration // アイドルウィンドウエントリの破棄TTL
	FailClosed  bool          // 送信元アドレスを解決できない場合に拒否するか
}

// DefaultAdmissionConfig はデフォルトのアドミッションフィルタ設定を返す。
// 要件: 60 req/min/送信元、超過で5分間ブロック
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		MaxRequests: 60,
		Window:      1 * time.Minute,
		BlockFor:    5 * time.Minute,
		IdleTTL:     5 * time.Minute,
		FailClosed:  false,
	}
}

// WindowStore は送信元キーごとのリクエスト履歴とブロックフラグを保持するストア。
// プロセス内メモリ実装をデフォルトとするが、水平スケール時に
// 分散ストア実装へ差し替えられるようインターフェースとして注入する。
type WindowStore interface {
	// Window は指定キーのリクエストタイムスタンプ列を返す。未登録ならnil。
	Window(key string) []time.Time

	// SetWindow はタイムスタンプ列をアイドルTTL付きで保存する。
	SetWindow(key string, timestamps []time.Time, ttl time.Duration)

	// Blocked は指定キーのブロック解除時刻と、現在ブロック中かを返す。
	Blocked(key string) (until time.Time, ok bool)

	// Block はブロックフラグをcompare-and-swapで設定する。
	// 未ブロックから設定できた場合のみtrueを返し、
	// 既に有効なブロックがある場合は延長せずfalseを返す。
	Block(key string, until time.Time) bool
}

// AdmissionRecorder はアドミッションフィルタの拒否をメトリクスに記録する。
type AdmissionRecorder interface {
	RecordRateLimited()
}

// AdmissionFilter は送信元ごとのスライディングウィンドウ方式で
// リクエスト流入量を制限する。
//
// 状態遷移（送信元キーごと）:
//   - 初回リクエストでウィンドウを開く
//   - ウィンドウ幅より古いタイムスタンプを刈り取った後の件数が
//     MaxRequestsに達したらブロックフラグを設定し、即座に429を返す
//   - ブロック中はウィンドウを参照・更新せずに429を返す（低コスト拒否）
//   - ブロックはTTL満了で自動解除される（リクエスト不要）
//
// ウィンドウへの read-modify-write は複数リクエストが競合すると
// わずかな超過を許容する（ソフトリミット）が、ブロックフラグの設定は
// ストア側でset-onceが保証される。
type AdmissionFilter struct {
	config   AdmissionConfig
	store    WindowStore
	recorder AdmissionRecorder // nil可
	now      func() time.Time
}

// NewAdmissionFilter はAdmissionFilterを生成する。
// recorderはnilを許容する（メトリクス記録なし）。
func NewAdmissionFilter(config AdmissionConfig, store WindowStore, recorder AdmissionRecorder) *AdmissionFilter {
	return &AdmissionFilter{
		config:   config,
		store:    store,
		recorder: recorder,
		now:      time.Now,
	}
}

// Middleware はアドミッションフィルタのHTTPミドルウェアを返す。
// 認証より前、全リクエストに対して適用する。
func (f *AdmissionFilter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == "" {
				// 送信元アドレス不明。既定ではフェイルオープン（可用性優先）。
				if f.config.FailClosed {
					f.reject(w, f.config.BlockFor, "unable to determine client address")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			now := f.now()

			// ブロック中は即座に拒否し、ウィンドウには触れない
			if until, ok := f.store.Blocked(ip); ok {
				f.reject(w, until.Sub(now), "IP address temporarily blocked due to excessive requests.")
				slog.Warn("blocked request rejected",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				return
			}

			// ウィンドウを取得し、ウィンドウ幅より古いタイムスタンプを刈り取る。
			// ストアが返したスライスは共有される可能性があるため書き換えない。
			key := ip + "_" + r.URL.Path
			history := f.store.Window(key)
			pruned := make([]time.Time, 0, len(history)+1)
			for _, ts := range history {
				if now.Sub(ts) <= f.config.Window {
					pruned = append(pruned, ts)
				}
			}

			if len(pruned) >= f.config.MaxRequests {
				// ブロックへ遷移。並行リクエストが同時に到達しても
				// ストアのset-once保証によりブロック期限は延長されない。
				f.store.Block(ip, now.Add(f.config.BlockFor))
				f.reject(w, f.config.BlockFor, fmt.Sprintf("Too many requests. IP address blocked for %v.", f.config.BlockFor))
				slog.Warn("rate limit exceeded, blocking ip",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
					slog.Int("requests_in_window", len(pruned)),
				)
				return
			}

			pruned = append(pruned, now)
			f.store.SetWindow(key, pruned, f.config.IdleTTL)

			next.ServeHTTP(w, r)
		})
	}
}

// reject は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはブロック解除までの推定秒数を設定する。
func (f *AdmissionFilter) reject(w http.ResponseWriter, retryAfter time.Duration, message string) {
	if f.recorder != nil {
		f.recorder.RecordRateLimited()
	}

	sec := int(retryAfter.Seconds())
	if sec < 1 {
		sec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(sec))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintln(w, message)
}

// clientIP はリクエストの送信元IPアドレスを返す。解決できない場合は空文字。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// ポートなしのRemoteAddrはそのままIPとして扱う
		if ip := net.ParseIP(r.RemoteAddr); ip != nil {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}

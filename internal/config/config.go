// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	TokenSecret   string
	TokenLifetime time.Duration

	// Rate Limit（アドミッションフィルタ）
	RateLimitMax        int           // ウィンドウ内の最大リクエスト数
	RateLimitWindow     time.Duration // スライディングウィンドウ幅
	RateLimitBlock      time.Duration // ブロック継続時間
	RateLimitIdleTTL    time.Duration // アイドルエントリの破棄TTL
	RateLimitFailClosed bool          // 送信元アドレス不明時に拒否するか

	// Login throttle（ブルートフォース対策）
	LoginAttemptBurst    int
	LoginAttemptInterval time.Duration

	// Admin seed
	AdminEmail    string
	AdminPassword string

	// Server
	ServerPort string

	// Web tier
	APIBaseURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 署名キー（TOKEN_SECRET）が未設定の場合はエラーを返す。
// モード固有の必須項目はValidateAPI / ValidateWebで検証する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("required environment variable is not set: TOKEN_SECRET")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.APIBaseURL = os.Getenv("API_BASE_URL")

	// Optional fields with defaults
	cfg.TokenLifetime = getEnvDuration("TOKEN_LIFETIME", 2*time.Hour)
	cfg.RateLimitMax = getEnvInt("RATE_LIMIT_MAX", 60)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute)
	cfg.RateLimitBlock = getEnvDuration("RATE_LIMIT_BLOCK", 5*time.Minute)
	cfg.RateLimitIdleTTL = getEnvDuration("RATE_LIMIT_IDLE_TTL", 5*time.Minute)
	cfg.RateLimitFailClosed = getEnvBool("RATE_LIMIT_FAIL_CLOSED", false)
	cfg.LoginAttemptBurst = getEnvInt("LOGIN_ATTEMPT_BURST", 5)
	cfg.LoginAttemptInterval = getEnvDuration("LOGIN_ATTEMPT_INTERVAL", 1*time.Minute)
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// ValidateAPI はAPIサーバーモードおよびマイグレーションに必要な設定を検証する。
func (c *Config) ValidateAPI() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}
	return nil
}

// ValidateWeb はフロントエンドモードに必要な設定を検証する。
func (c *Config) ValidateWeb() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("required environment variable is not set: API_BASE_URL")
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

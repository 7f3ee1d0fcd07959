package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkondo/todoapp/internal/auth"
	"github.com/mkondo/todoapp/internal/config"
	"github.com/mkondo/todoapp/internal/database"
	"github.com/mkondo/todoapp/internal/handler"
	"github.com/mkondo/todoapp/internal/logger"
	"github.com/mkondo/todoapp/internal/metrics"
	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/repository"
	"github.com/mkondo/todoapp/internal/security"
	"github.com/mkondo/todoapp/internal/todo"
	"github.com/mkondo/todoapp/internal/token"
	"github.com/mkondo/todoapp/internal/user"
	"github.com/mkondo/todoapp/internal/web"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定読み込み前でもログできるようデフォルトレベルで初期化する
		logger.SetupDefault(w, "info")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandAPI:
		return runAPI(cfg)
	case CommandWeb:
		return runWeb(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runAPI(cfg)
	}
}

// newAdmissionFilter は設定からアドミッションフィルタ一式を組み立てる。
// 返されたstoreは呼び出し側がStopで破棄する。
func newAdmissionFilter(cfg *config.Config, recorder middleware.AdmissionRecorder) (*middleware.AdmissionFilter, *middleware.MemoryWindowStore) {
	store := middleware.NewMemoryWindowStore(1 * time.Minute)
	filter := middleware.NewAdmissionFilter(middleware.AdmissionConfig{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		BlockFor:    cfg.RateLimitBlock,
		IdleTTL:     cfg.RateLimitIdleTTL,
		FailClosed:  cfg.RateLimitFailClosed,
	}, store, recorder)
	return filter, store
}

// runAPI はWeb APIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runAPI(cfg *config.Config) error {
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	roleRepo := repository.NewPostgresRoleRepo(db)
	todoRepo := repository.NewPostgresTodoRepo(db)

	// 3. トークン発行器
	issuer, err := token.NewIssuer(cfg.TokenSecret, cfg.TokenLifetime)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, roleRepo, issuer, auth.ServiceConfig{
		LoginAttemptBurst:    cfg.LoginAttemptBurst,
		LoginAttemptInterval: cfg.LoginAttemptInterval,
	})
	defer authService.Close()

	todoService := todo.NewService(todoRepo)
	userService := user.NewService(userRepo, roleRepo)

	// 管理者アカウントのシード（ADMIN_EMAIL / ADMIN_PASSWORD が設定された場合のみ）
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authService.EnsureAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		seedCancel()
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	seedCancel()

	// 5. メトリクスとアドミッションフィルタ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	admission, store := newAdmissionFilter(cfg, collector)
	defer store.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Verifier:          issuer,
		Admission:         admission,
		Collector:         collector,
		MetricsHandler:    metrics.Handler(registry),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AuthService:       authService,
		TodoService:       todoService,
		UserService:       userService,
		DB:                db,
	})

	return serveHTTP("API server", ":"+cfg.ServerPort, router)
}

// runWeb はフロントエンドモードで起動する。
// APIサーバーへのHTTPクライアントを構成し、ページルーターを起動する。
func runWeb(cfg *config.Config) error {
	if err := cfg.ValidateWeb(); err != nil {
		return err
	}

	// セッションCookie内のトークン検証用。API層と同じ署名キーを共有する
	verifier, err := token.NewIssuer(cfg.TokenSecret, cfg.TokenLifetime)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Web層は独立したアドミッションフィルタを持つ（API層と状態を共有しない）
	admission, store := newAdmissionFilter(cfg, collector)
	defer store.Stop()

	router, err := web.NewRouter(&web.RouterDeps{
		Logger:    slog.Default(),
		Verifier:  verifier,
		Admission: admission,
		Collector: collector,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Client:          web.NewAPIClient(cfg.APIBaseURL),
		Sanitizer:       security.NewContentSanitizer(),
		CookieSecure:    cfg.CookieSecure,
		SessionLifetime: cfg.TokenLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to build web router: %w", err)
	}

	return serveHTTP("web server", ":"+cfg.ServerPort, router)
}

// serveHTTP はHTTPサーバーを起動し、SIGINT/SIGTERMでグレースフルシャットダウンする。
func serveHTTP(name, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

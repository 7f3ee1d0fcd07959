// Package auth は資格情報の検証とトークン発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer はトークン発行に必要なインターフェース。
// token.Issuerの部分集合として定義する。
type TokenIssuer interface {
	Issue(user *model.User, roles []string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	LoginAttemptBurst    int           // 連続して許容するログイン試行回数
	LoginAttemptInterval time.Duration // 試行1回分が回復するまでの間隔
}

// Service は登録・ログインのビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	issuer   TokenIssuer
	throttle *loginThrottle
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	issuer TokenIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo: userRepo,
		roleRepo: roleRepo,
		issuer:   issuer,
		throttle: newLoginThrottle(config.LoginAttemptBurst, config.LoginAttemptInterval),
	}
}

// Close はバックグラウンド処理を停止する。
func (s *Service) Close() {
	s.throttle.Stop()
}

// RegisterInput はユーザー登録の入力を表す。
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register は新規ユーザーを作成し、トークンを発行して返す。
// 作成されたユーザーにはデフォルトでUserロールが付与される。
func (s *Service) Register(ctx context.Context, input RegisterInput) (string, *model.User, error) {
	if err := validateRegisterInput(input); err != nil {
		return "", nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return "", nil, model.NewEmailTakenError(email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user, []string{model.RoleUser}); err != nil {
		return "", nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
	)

	tok, err := s.issueFreshToken(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

// Login は資格情報を検証し、トークンを発行して返す。
// メールアドレス未登録とパスワード不一致は同一のエラーを返す（存在を漏らさない）。
// 同一メールアドレスへの連続失敗はスロットルされ、超過中は試行自体を拒否する。
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !s.throttle.Allow(email) {
		slog.Warn("login throttled",
			slog.String("email", email),
		)
		return "", nil, &model.APIError{
			Code:     model.ErrCodeRateLimited,
			Message:  "ログイン試行が多すぎます。",
			Category: "auth",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return "", nil, model.NewInvalidCredentialError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, model.NewInvalidCredentialError()
	}

	// 成功したら失敗カウントをリセットする
	s.throttle.Reset(email)

	tok, err := s.issueFreshToken(ctx, user)
	if err != nil {
		return "", nil, err
	}
	return tok, user, nil
}

// issueFreshToken は発行時点の最新のロールを取得してトークンを発行する。
// ロールは発行の都度DBから読む（古いキャッシュを埋め込まない）。
func (s *Service) issueFreshToken(ctx context.Context, user *model.User) (string, error) {
	roles, err := s.roleRepo.NamesByUserID(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch roles: %w", err)
	}

	tok, err := s.issuer.Issue(user, roles)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return tok, nil
}

// EnsureAdmin は管理者アカウントが存在しない場合に作成する。
// 起動時のシード処理として呼ばれる。emailが空の場合は何もしない。
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Admin",
		LastName:     "User",
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, admin, []string{model.RoleAdmin}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user seeded",
		slog.String("user_id", admin.ID),
	)
	return nil
}

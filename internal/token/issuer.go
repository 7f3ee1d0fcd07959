// Package token はベアラートークンの発行と検証を提供する。
//
// トークンはHMAC-SHA256で署名されたJWTであり、サーバー側には保存しない。
// クレームには識別子・表示名・メールアドレス・ロール一覧・有効期限を含み、
// 下流の認可処理はこのクレームのみを信頼する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mkondo/todoapp/internal/model"
)

// 検証失敗時のエラー。呼び出し側は詳細をログに記録し、
// クライアントには一律の認証エラーを返すこと。
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims はトークンに埋め込むクレームを表す。
// subjectにはユーザーIDを設定する。
type Claims struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer はトークンの発行と検証を行う。
// 署名キーと有効期間のみに依存するステートレスな構造体で、
// 並行リクエストから安全に共有できる。
type Issuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewIssuer はIssuerを生成する。
// secretが空の場合はエラーを返す（起動時に検出すべき設定不備）。
func NewIssuer(secret string, lifetime time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret is empty")
	}
	return &Issuer{
		secret:   []byte(secret),
		lifetime: lifetime,
	}, nil
}

// Issue はユーザーとその現在のロール一覧からトークンを発行する。
// ロールは発行時点の最新の値を呼び出し側が渡すこと（キャッシュ不可）。
// 有効期限は発行時刻から固定でlifetime後となる。
func (i *Issuer) Issue(user *model.User, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  user.FirstName + " " + user.LastName,
		Email: user.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 検証は (トークン, 現在時刻, 署名キー) のみに依存する純粋な処理であり、
// 同一トークンの再検証は常に同一の結果を返す。
//
// 有効期限はクロック許容なしで判定する: 現在時刻 >= exp なら即座に拒否。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	// jwtライブラリはexpちょうどの時刻を許容するため、
	// 境界をゼロ許容（now >= exp で拒否）に固定する。
	if claims.ExpiresAt == nil || !time.Now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// Principal は検証済みクレームからリクエスト主体を復元する。
func (c *Claims) Principal() *model.Principal {
	return &model.Principal{
		UserID: c.Subject,
		Name:   c.Name,
		Email:  c.Email,
		Roles:  c.Roles,
	}
}

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力由来のテキストをサニタイズし、
// XSS攻撃などのセキュリティリスクから画面表示を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// ToDoのタイトル・説明をWeb画面に描画する前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力テキストをサニタイズして安全なHTMLを返す。
	// 最小限の装飾タグ（br, strong, em）のみを通過させ、
	// script, iframe, style, imgタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string

	// Strip は入力テキストから全てのタグを除去したプレーンテキストを返す。
	// 属性値やタイトル表示など、タグを一切許容しない箇所で使用する。
	Strip(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ToDoの説明文は改行と強調程度の装飾のみ想定されるため、
// 許可タグはbr, strong, emに絞る。リンクや画像は許可しない。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "strong", "em")

	return &contentSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// Strip は全てのタグを除去したプレーンテキストを返す。
func (s *contentSanitizer) Strip(raw string) string {
	return s.strict.Sanitize(raw)
}

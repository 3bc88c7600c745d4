// Package security はアプリケーションのセキュリティ機能を提供する。
//
// LinkPolicy は投資家向けダッシュボードでリンクとして描画される資料URLを検査する。
// 自由記述テキストは入力のまま保存し、エスケープは描画側の責務とする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// LinkPolicy はリンク先URLの検査機能のインターフェース。
type LinkPolicy interface {
	// SafeURL はrawがhttp/httpsまたは相対URLであれば前後の空白を除いて返す。
	// javascript:やdata:などそれ以外のURLの場合は空文字列を返す。
	SafeURL(raw string) string
}

// linkPolicy はLinkPolicyの実装。
// bluemondayのポリシーはスレッドセーフで、複数リクエストから共有できる。
type linkPolicy struct {
	policy *bluemonday.Policy
}

// NewLinkPolicy はLinkPolicyの新しいインスタンスを生成する。
func NewLinkPolicy() LinkPolicy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	return &linkPolicy{policy: p}
}

// SafeURL はrawを<a href>としてサニタイズし、hrefが残った場合のみURLを返す。
func (l *linkPolicy) SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := l.policy.Sanitize(`<a href="` + html.EscapeString(raw) + `">x</a>`)
	if !strings.Contains(out, "href=") {
		return ""
	}
	return raw
}

package security

import "testing"

func TestSafeURL(t *testing.T) {
	policy := NewLinkPolicy()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"https", "https://cdn.example.com/q4-2024/deck.pdf", "https://cdn.example.com/q4-2024/deck.pdf"},
		{"http", "http://example.com/report.pdf", "http://example.com/report.pdf"},
		{"相対パス", "/documents/q4-2024/financials.pdf", "/documents/q4-2024/financials.pdf"},
		{"クエリ付き", "https://example.com/dl?id=1&v=2", "https://example.com/dl?id=1&v=2"},
		{"前後の空白を除去する", "  https://example.com/a.pdf ", "https://example.com/a.pdf"},
		{"javascriptスキーム", "javascript:alert(1)", ""},
		{"大文字のjavascriptスキーム", "JavaScript:alert(1)", ""},
		{"dataスキーム", "data:text/html;base64,PHNjcmlwdD4=", ""},
		{"未許可のスキーム", "ftp://example.com/file.pdf", ""},
		{"属性の注入", `https://example.com/" onclick="alert(1)`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.SafeURL(tt.input); got != tt.want {
				t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

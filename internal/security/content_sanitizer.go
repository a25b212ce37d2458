package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者やフィードから受け取った文字列から
// すべてのマークアップを取り除き、プレーンテキストにする。
// 出力はHTMLテンプレート側でエスケープされる前提で、実体参照は元の文字に戻す。
type TextSanitizer interface {
	// Line は1行のテキスト（名前・タイトル）を返す。改行と連続空白は1つの空白にまとめる。
	Line(raw string) string
	// Text は複数行のテキスト（説明文）を返す。改行は保持し、前後の空白を除く。
	Text(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *textSanitizer) Line(raw string) string {
	return strings.Join(strings.Fields(s.strip(raw)), " ")
}

func (s *textSanitizer) Text(raw string) string {
	text := strings.ReplaceAll(s.strip(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (s *textSanitizer) strip(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}

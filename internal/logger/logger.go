package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// 出力形式
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	return New(w, FormatJSON, "info")
}

// New は指定形式・レベルのslog.Loggerを生成する。
// "text" の場合は開発向けに色付きの人間可読形式（tint）で出力し、
// それ以外はJSON形式で出力する。
func New(w io.Writer, format, level string) *slog.Logger {
	lv := ParseLevel(level)
	if strings.EqualFold(format, FormatText) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lv,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
	}))
}

// ParseLevel はログレベル文字列をslog.Levelに変換する。
// 不明な値はinfoとして扱う。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupDefault は構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, format, level string) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(New(w, format, level))
}

package jobfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/security"
)

const userAgent = "Hireflow/1.0 Job Importer"

// Sanitizer は取り込んだテキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Line(raw string) string
	Text(raw string) string
}

// Config は取り込み処理の制限値。
type Config struct {
	Timeout  time.Duration
	MaxSize  int64
	MaxItems int
}

// Importer はフィードを取得し、求人の候補に変換する。
// 取得はリクエスト内で同期的に行う。
type Importer struct {
	guard     security.URLGuard
	sanitizer Sanitizer
	config    Config
}

// NewImporter はImporterを生成する。
func NewImporter(guard security.URLGuard, sanitizer Sanitizer, config Config) *Importer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 5 * 1024 * 1024
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 50
	}
	return &Importer{guard: guard, sanitizer: sanitizer, config: config}
}

// Fetch はURLのフィード（またはページが参照するフィード）を取得し、
// エントリを最大MaxItems件のImportedJobに変換して返す。
func (i *Importer) Fetch(ctx context.Context, rawURL string) ([]model.ImportedJob, error) {
	if err := i.validate(rawURL); err != nil {
		return nil, err
	}

	client := i.guard.NewSafeClient(i.config.Timeout)

	body, contentType, err := i.get(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}

	feedURL := rawURL
	if !isFeed(contentType, body) {
		if !isHTML(contentType) {
			// Content-Typeが汎用でもパースできれば受け入れる
			if jobs, err := i.parse(body); err == nil {
				return jobs, nil
			}
			return nil, model.NewFeedNotDetectedError(rawURL)
		}

		link, ok := selectFeedLink(discoverFeedLinks(body, rawURL), rawURL)
		if !ok {
			return nil, model.NewFeedNotDetectedError(rawURL)
		}
		feedURL = link.URL
		if err := i.validate(feedURL); err != nil {
			return nil, err
		}

		slog.Debug("ページからフィードを検出しました",
			slog.String("page_url", rawURL),
			slog.String("feed_url", feedURL),
		)

		body, _, err = i.get(ctx, client, feedURL)
		if err != nil {
			return nil, err
		}
	}

	jobs, err := i.parse(body)
	if err != nil {
		slog.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}
	return jobs, nil
}

func (i *Importer) validate(rawURL string) error {
	err := i.guard.ValidateURL(rawURL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, security.ErrBlockedURL):
		return model.NewSSRFBlockedError()
	default:
		return model.NewInvalidURLError(err.Error())
	}
}

func (i *Importer) get(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	slog.Info("求人フィードを取得しました",
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.config.MaxSize))
	if err != nil {
		return nil, "", model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// parse はgofeedでボディを解析し、タイトルのないエントリを除いて変換する。
func (i *Importer) parse(body []byte) ([]model.ImportedJob, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	jobs := make([]model.ImportedJob, 0, min(len(feed.Items), i.config.MaxItems))
	for _, item := range feed.Items {
		if len(jobs) >= i.config.MaxItems {
			break
		}
		if item == nil {
			continue
		}
		title := truncateRunes(i.sanitizer.Line(item.Title), model.JobTitleMaxLen)
		if title == "" {
			continue
		}
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		jobs = append(jobs, model.ImportedJob{
			Title:       title,
			Description: truncateRunes(i.sanitizer.Text(desc), model.JobDescriptionMaxLen),
			Link:        item.Link,
		})
	}
	return jobs, nil
}

// truncateRunes はsを先頭からn文字（rune単位）に切り詰める。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

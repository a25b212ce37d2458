package jobfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/security"
)

// mockGuard はhttptestサーバー（ループバック）への接続を許可するURLGuard。
type mockGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Careers</title>
  <link>https://careers.example.com</link>
  <item>
    <title>Backend &lt;b&gt;Go&lt;/b&gt; Engineer</title>
    <link>https://careers.example.com/jobs/1</link>
    <description>&lt;p&gt;Build APIs.&lt;/p&gt;</description>
  </item>
  <item>
    <title></title>
    <link>https://careers.example.com/jobs/2</link>
  </item>
  <item>
    <title>Product Designer</title>
    <link>https://careers.example.com/jobs/3</link>
  </item>
</channel>
</rss>`

const atomBody = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Jobs</title>
  <entry>
    <title>SRE</title>
    <link href="https://jobs.example.com/sre"/>
    <content type="html">&lt;ul&gt;&lt;li&gt;On-call&lt;/li&gt;&lt;/ul&gt;</content>
  </entry>
</feed>`

func newImporter(guard security.URLGuard, maxItems int) *Importer {
	return NewImporter(guard, security.NewTextSanitizer(), Config{
		Timeout:  5 * time.Second,
		MaxSize:  1 << 20,
		MaxItems: maxItems,
	})
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("Code = %q, want %q", apiErr.Code, code)
	}
}

func TestFetch_DirectRSS(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Hireflow/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		fmt.Fprint(w, rssBody)
	}))
	defer ts.Close()

	jobs, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL+"/feed")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs (untitled entry skipped), got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].Title != "Backend Go Engineer" {
		t.Errorf("Title = %q, markup should be stripped", jobs[0].Title)
	}
	if jobs[0].Description != "Build APIs." {
		t.Errorf("Description = %q", jobs[0].Description)
	}
	if jobs[1].Description != "" || jobs[1].Link != "https://careers.example.com/jobs/3" {
		t.Errorf("unexpected second job: %+v", jobs[1])
	}
}

func TestFetch_MaxItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody)
	}))
	defer ts.Close()

	jobs, err := newImporter(&mockGuard{}, 1).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
}

// TestFetch_TruncatesLongTitle は列長を超えるタイトルが手動作成と同じ上限で切り詰められることを検証する。
func TestFetch_TruncatesLongTitle(t *testing.T) {
	longTitle := strings.Repeat("求人", 300)
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Long</title>
<item><title>` + longTitle + `</title><link>https://careers.example.com/jobs/long</link></item>
</channel></rss>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	jobs, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if n := utf8.RuneCountInString(jobs[0].Title); n != model.JobTitleMaxLen {
		t.Errorf("title length = %d, want %d", n, model.JobTitleMaxLen)
	}
	if !strings.HasPrefix(longTitle, jobs[0].Title) {
		t.Error("truncated title should be a prefix of the original")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"日本語の求人", 3, "日本語"},
		{"trailing space here", 9, "trailing"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

// TestFetch_DiscoversFeedFromHTML は求人ページのlink要素からAtomフィードを検出することを検証する。
func TestFetch_DiscoversFeedFromHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/rss+xml" href="https://other.example.com/rss">
			<link rel="alternate" type="application/atom+xml" href="/jobs.atom" title="Jobs">
		</head><body>careers</body></html>`)
	})
	mux.HandleFunc("/jobs.atom", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomBody)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	jobs, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL+"/careers")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].Title != "SRE" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if jobs[0].Description != "On-call" {
		t.Errorf("Description = %q", jobs[0].Description)
	}
}

func TestFetch_HTMLWithoutFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>No feed</title></head><body></body></html>`)
	}))
	defer ts.Close()

	_, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL)
	requireCode(t, err, model.ErrCodeFeedNotDetected)
}

func TestFetch_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL)
	requireCode(t, err, model.ErrCodeFetchFailed)
}

func TestFetch_BrokenFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `this is not a feed`)
	}))
	defer ts.Close()

	_, err := newImporter(&mockGuard{}, 50).Fetch(context.Background(), ts.URL)
	requireCode(t, err, model.ErrCodeParseFailed)
}

func TestFetch_GuardErrors(t *testing.T) {
	blocked := &mockGuard{validateFn: func(string) error {
		return fmt.Errorf("%w: address 10.0.0.1", security.ErrBlockedURL)
	}}
	_, err := newImporter(blocked, 50).Fetch(context.Background(), "http://10.0.0.1/feed")
	requireCode(t, err, model.ErrCodeSSRFBlocked)

	invalid := &mockGuard{validateFn: func(string) error {
		return fmt.Errorf("%w: scheme", security.ErrInvalidURL)
	}}
	_, err = newImporter(invalid, 50).Fetch(context.Background(), "ftp://example.com")
	requireCode(t, err, model.ErrCodeInvalidURL)
}

// 検出したフィードURLも検証対象とする。
func TestFetch_DiscoveredFeedIsValidated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="http://169.254.169.254/rss"></head></html>`)
	}))
	defer ts.Close()

	guard := &mockGuard{validateFn: func(rawURL string) error {
		if strings.Contains(rawURL, "169.254") {
			return security.ErrBlockedURL
		}
		return nil
	}}
	_, err := newImporter(guard, 50).Fetch(context.Background(), ts.URL)
	requireCode(t, err, model.ErrCodeSSRFBlocked)
}

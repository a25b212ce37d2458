// Package jobfeed はRSS/Atomフィードから求人を取り込む。
// URLが求人ページの場合はheadのlink要素からフィードを自動検出する。
package jobfeed

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedLink はHTMLから検出されたフィードへのリンク。
type FeedLink struct {
	URL   string
	Atom  bool
	Title string
}

var feedMediaTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/feed+json": true,
}

var xmlMediaTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// isFeed はContent-Typeとボディの先頭からフィードかどうかを判定する。
func isFeed(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	if feedMediaTypes[mt] {
		return true
	}
	if !xmlMediaTypes[mt] || len(body) == 0 {
		return false
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	prefix := strings.ToLower(string(head))
	switch {
	case strings.Contains(prefix, "<rss"), strings.Contains(prefix, "<rdf:rdf"):
		return true
	case strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// isHTML はContent-TypeがHTMLかどうかを返す。
func isHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// discoverFeedLinks はHTMLのheadから rel="alternate" のフィードリンクを抽出する。
// 相対URLはbaseURLで解決する。
func discoverFeedLinks(body []byte, baseURL string) []FeedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []FeedLink
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !hasAttr {
				continue
			}

			attrs := map[string]string{}
			for {
				key, val, more := z.TagAttr()
				attrs[strings.ToLower(string(key))] = string(val)
				if !more {
					break
				}
			}

			if !hasToken(attrs["rel"], "alternate") || attrs["href"] == "" {
				continue
			}
			typ := strings.ToLower(strings.TrimSpace(attrs["type"]))
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(strings.TrimSpace(attrs["href"]))
			if err != nil {
				continue
			}
			links = append(links, FeedLink{
				URL:   base.ResolveReference(ref).String(),
				Atom:  typ == "application/atom+xml",
				Title: attrs["title"],
			})
		}
	}
}

// hasToken はスペース区切りの属性値にtokenが含まれるかを返す。
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(value)) {
		if f == token {
			return true
		}
	}
	return false
}

// selectFeedLink は同一ホスト、Atom、出現順の優先度で1つ選ぶ。
func selectFeedLink(links []FeedLink, pageURL string) (FeedLink, bool) {
	if len(links) == 0 {
		return FeedLink{}, false
	}

	pageHost := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == pageHost {
			score += 2
		}
		if l.Atom {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrInvalidURL はURLの形式が不正であることを表す。
	ErrInvalidURL = errors.New("invalid url")
	// ErrBlockedURL はURLの宛先がセキュリティポリシーで禁止されていることを表す。
	ErrBlockedURL = errors.New("blocked url")
)

// URLGuard は外部URLの検証とSSRF防止付きHTTPクライアントの生成を行う。
// 候補者のプロフィールURLの登録時と、求人フィードの取り込み時に使用する。
type URLGuard interface {
	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	// 形式不正はErrInvalidURL、禁止された宛先はErrBlockedURLをラップして返す。
	ValidateURL(rawURL string) error

	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル宛ての接続を
	// DNS解決後のDialerで拒否する。
	NewSafeClient(timeout time.Duration) *http.Client
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロックされるネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドのメタデータIPを含む
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

// blockedHostnames はブロック対象のホスト名（小文字）。
var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// urlGuard はURLGuardの実装。
type urlGuard struct {
	allowedPorts []int
}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *urlGuard {
	return &urlGuard{allowedPorts: []int{80, 443}}
}

// NewSafeClient はsafeurlで保護されたHTTPクライアントを返す。
func (g *urlGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト名、IPアドレスを静的に検証する。
// DNS再バインディングはNewSafeClient側のDialerで防ぐ。
func (g *urlGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrInvalidURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("%w: address %s", ErrBlockedURL, ip)
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if _, ok := blockedHostnames[lower]; ok || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
	}

	return nil
}

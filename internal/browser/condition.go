package browser

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
)

var ErrAlreadyConditioned = errors.New("browser: session already conditioned")

// RequestFilterPolicy decides which outgoing requests a conditioned session
// aborts. Blocklist entries are matched as substrings of the lowercased URL,
// in order.
type RequestFilterPolicy struct {
	Blocklist   []string `yaml:"blocklist"`
	BlockImages bool     `yaml:"block_images"`
}

func DefaultBlocklist() []string {
	return []string{
		"doubleclick.net",
		"googlesyndication.com",
		"google-analytics.com",
		"googletagmanager.com",
		"adservice.google",
		"connect.facebook.net",
		"hotjar.com",
		"scorecardresearch.com",
		"popads.net",
		"popcash.net",
		"propellerads",
		"adsterra",
		"exoclick.com",
		"juicyads.com",
		"disqus.com",
		"/ads.js",
		"/pop.js",
	}
}

// Blocks is evaluated for every request of a conditioned session and must
// stay cheap.
func (p RequestFilterPolicy) Blocks(rawURL string, rt network.ResourceType) bool {
	if p.BlockImages {
		switch rt {
		case network.ResourceTypeImage, network.ResourceTypeMedia, network.ResourceTypeFont:
			return true
		}
	}

	u := strings.ToLower(rawURL)
	for _, b := range p.Blocklist {
		if b != "" && strings.Contains(u, strings.ToLower(b)) {
			return true
		}
	}

	return false
}

// Conditioning is applied once to a fresh session before it navigates.
type Conditioning struct {
	Filter         RequestFilterPolicy
	UserAgent      string
	AcceptLanguage string
}

// Conditioner is implemented by pages that support evasion conditioning.
type Conditioner interface {
	Condition(ctx context.Context, c Conditioning) error
	Conditioned() bool
}

// conditionGuard makes conditioning a one-shot operation per session.
type conditionGuard struct {
	done atomic.Bool
}

func (g *conditionGuard) claim() error {
	if !g.done.CompareAndSwap(false, true) {
		return ErrAlreadyConditioned
	}

	return nil
}

func (g *conditionGuard) Conditioned() bool { return g.done.Load() }

const (
	scriptWebdriver = `Object.defineProperty(Navigator.prototype, 'webdriver', {get: () => undefined});`
	scriptRuntime   = `window.chrome = window.chrome || {}; window.chrome.runtime = window.chrome.runtime || {};`
	scriptLanguages = `Object.defineProperty(navigator, 'languages', {get: () => ['es-ES', 'es', 'en-US', 'en']});`
	scriptPlugins   = `Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});`
	scriptPerms     = `const q = window.navigator.permissions && window.navigator.permissions.query;
if (q) { window.navigator.permissions.query = (p) => p && p.name === 'notifications'
  ? Promise.resolve({state: Notification.permission}) : q.call(window.navigator.permissions, p); }`
)

var stealthScripts = []string{
	scriptWebdriver,
	scriptRuntime,
	scriptLanguages,
	scriptPlugins,
	scriptPerms,
}

func platformFor(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "macintosh"):
		return "MacIntel"
	case strings.Contains(l, "windows"):
		return "Win32"
	case strings.Contains(l, "linux"):
		return "Linux x86_64"
	default:
		return ""
	}
}

// Package browser drives a headless Chrome tab: evasion conditioning,
// challenge-aware navigation and the DOM queries pagination needs.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/brogergvhs/mangasrc/internal/ui"
)

type Config struct {
	Headless    bool   `yaml:"headless"`
	ExecPath    string `yaml:"exec_path"`
	ProxyServer string `yaml:"proxy_server"`
	WindowW     int    `yaml:"window_width"`
	WindowH     int    `yaml:"window_height"`
}

func DefaultConfig() Config {
	return Config{Headless: true, WindowW: 1366, WindowH: 900}
}

// Session owns one browser process and one tab. It is not safe for
// concurrent navigation; give every pipeline its own session.
type Session struct {
	conditionGuard

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	ctx         context.Context
	log         *ui.Logger
}

func NewSession(cfg Config, log *ui.Logger) (*Session, error) {
	if log == nil {
		log = ui.Nop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyServer))
	}
	if cfg.WindowW > 0 && cfg.WindowH > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowW, cfg.WindowH))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		ctx:         tabCtx,
		log:         log.Component("browser"),
	}, nil
}

func (s *Session) Close() error {
	s.tabCancel()
	s.allocCancel()
	return nil
}

// bind derives a tab context that also ends when ctx does.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bctx, cancel := context.WithCancel(s.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		bctx, dcancel = context.WithDeadline(bctx, dl)
		prev := cancel
		cancel = func() { dcancel(); prev() }
	}

	stop := context.AfterFunc(ctx, cancel)
	return bctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	bctx, cancel := s.bind(ctx)
	defer cancel()

	return chromedp.Run(bctx, actions...)
}

// Condition applies automation masking, the user agent override, stealth
// scripts and request interception. A session accepts it once.
func (s *Session) Condition(ctx context.Context, c Conditioning) error {
	if err := s.claim(); err != nil {
		return err
	}

	filter := c.Filter
	chromedp.ListenTarget(s.ctx, func(ev any) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		go func() {
			ectx := cdp.WithExecutor(s.ctx, chromedp.FromContext(s.ctx).Target)
			var err error
			if filter.Blocks(e.Request.URL, e.ResourceType) {
				err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
			} else {
				err = fetch.ContinueRequest(e.RequestID).Do(ectx)
			}
			if err != nil {
				s.log.Debugf("request filter: %v", err)
			}
		}()
	})

	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetAutomationOverride(false).Do(ctx); err != nil {
			s.log.Debugf("automation override unavailable: %v", err)
		}

		if c.UserAgent != "" {
			ua := emulation.SetUserAgentOverride(c.UserAgent)
			if c.AcceptLanguage != "" {
				ua = ua.WithAcceptLanguage(c.AcceptLanguage)
			}
			if p := platformFor(c.UserAgent); p != "" {
				ua = ua.WithPlatform(p)
			}
			if err := ua.Do(ctx); err != nil {
				return fmt.Errorf("user agent override: %w", err)
			}
		}

		for _, script := range stealthScripts {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("stealth script: %w", err)
			}
		}

		return fetch.Enable().Do(ctx)
	}))
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload())
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.run(ctx,
		chromedp.Location(&snap.URL),
		chromedp.Title(&snap.Title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &snap.Text),
		chromedp.Evaluate(`document.documentElement.outerHTML`, &snap.HTML),
	)

	return snap, err
}

func (s *Session) eval(ctx context.Context, js string, out any) error {
	return s.run(ctx, chromedp.Evaluate(js, out))
}

func quote(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.eval(ctx, fmt.Sprintf(`document.querySelectorAll(%s).length`, quote(selector)), &n)
	return n, err
}

func (s *Session) Height(ctx context.Context) (int, error) {
	var h int
	err := s.eval(ctx, `Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)`, &h)
	return h, err
}

func (s *Session) ScrollToBottom(ctx context.Context) error {
	var ignored any
	return s.eval(ctx, `window.scrollTo(0, document.documentElement.scrollHeight); true`, &ignored)
}

const visibleFn = `function vis(el) {
  if (!el || el.disabled) return false;
  const st = window.getComputedStyle(el);
  if (st.display === 'none' || st.visibility === 'hidden') return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`

// ClickFirst clicks the first visible element matching any selector.
func (s *Session) ClickFirst(ctx context.Context, selectors []string) (bool, error) {
	js := fmt.Sprintf(`(() => { %s
  for (const sel of %s) {
    let nodes = [];
    try { nodes = document.querySelectorAll(sel); } catch (e) { continue; }
    for (const el of nodes) { if (vis(el)) { el.scrollIntoView({block: 'center'}); el.click(); return true; } }
  }
  return false; })()`, visibleFn, quote(selectors))

	var clicked bool
	err := s.eval(ctx, js, &clicked)
	return clicked, err
}

// ClickByText clicks the first visible clickable element whose text contains
// one of phrases, compared case-insensitively. Elements inside a link to
// another page are skipped so a click never navigates the tab away.
func (s *Session) ClickByText(ctx context.Context, phrases []string) (bool, error) {
	js := fmt.Sprintf(`(() => { %s
  const phrases = %s.map(p => p.toLowerCase());
  const leaves = el => {
    const a = el.closest('a[href]');
    if (!a) return false;
    const h = (a.getAttribute('href') || '').trim().toLowerCase();
    return h !== '' && h !== '#' && !h.startsWith('javascript:');
  };
  const nodes = document.querySelectorAll('button, a, [role="button"], span, div');
  for (const el of nodes) {
    if (el.children.length > 2 || leaves(el)) continue;
    const t = (el.innerText || '').trim().toLowerCase();
    if (!t || t.length > 60) continue;
    if (phrases.some(p => t.includes(p)) && vis(el)) { el.scrollIntoView({block: 'center'}); el.click(); return true; }
  }
  return false; })()`, visibleFn, quote(phrases))

	var clicked bool
	err := s.eval(ctx, js, &clicked)
	return clicked, err
}

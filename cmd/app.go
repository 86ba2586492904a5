package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brogergvhs/mangasrc/internal/browser"
	"github.com/brogergvhs/mangasrc/internal/config"
	"github.com/brogergvhs/mangasrc/internal/engine"
	"github.com/brogergvhs/mangasrc/internal/providers/generic"
	"github.com/brogergvhs/mangasrc/internal/transport"
	"github.com/brogergvhs/mangasrc/internal/ui"
	"github.com/brogergvhs/mangasrc/internal/util"
)

// app is the wiring every command shares: config, logger, HTTP client and
// an engine with one source per configured profile.
type app struct {
	cfg    *config.Config
	used   string
	log    *ui.Logger
	client *http.Client
	eng    *engine.Engine
	tabs   []*browser.Lazy
}

func loadApp(opts config.Options) (*app, error) {
	cfg, used, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}

	log := ui.NewLogger(cfg.Debug)
	ua := util.PickUserAgent(cfg.UserAgent)

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     60 * time.Second,
		UserAgent:   ua,
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		DebugLogger: log.Component("http"),
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		used:   used,
		log:    log,
		client: client,
		eng: engine.New(engine.Options{
			SourceTimeout: cfg.Server.SourceTimeout,
			Concurrency:   cfg.Server.Concurrency,
			Log:           log,
		}),
	}

	bcfg := browser.DefaultConfig()
	bcfg.Headless = cfg.Browser.Headless
	bcfg.ExecPath = cfg.Browser.ExecPath
	bcfg.ProxyServer = cfg.Browser.ProxyServer

	cond := browser.Conditioning{
		Filter: browser.RequestFilterPolicy{
			Blocklist:   cfg.Browser.Blocklist,
			BlockImages: cfg.Browser.BlockImages,
		},
		UserAgent:      ua,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
	}

	for _, p := range cfg.Sources {
		topts := transport.Options{
			Relays:         cfg.Transport.Relays,
			AttemptTimeout: cfg.Transport.AttemptTimeout,
			RatePerSecond:  cfg.Transport.RatePerSecond,
			Burst:          cfg.Transport.Burst,
			Client:         client,
			UserAgent:      ua,
			Log:            log.Component(p.Name),
		}

		// Every direct source gets its own tab so fan-out searches never
		// share a page.
		var tab generic.Browser
		if pol, _ := transport.ParsePolicy(string(p.Transport)); pol == transport.Direct {
			lazy := browser.NewLazy(bcfg, log.Component(p.Name))
			a.tabs = append(a.tabs, lazy)
			topts.Direct = browser.NewNavigator(lazy, cfg.Budget(), cond, log.Component(p.Name))
			tab = lazy
		}

		src := generic.NewScraper(p, generic.Options{
			Transport: transport.New(topts),
			Browser:   tab,
			Ceilings:  cfg.Ceilings,
			Log:       log,
		})
		if err := a.eng.Register(src); err != nil {
			a.Close()
			return nil, err
		}
	}

	log.Debugf("config: %s, %d sources", used, len(cfg.Sources))
	return a, nil
}

func (a *app) Close() {
	for _, t := range a.tabs {
		_ = t.Close()
	}
}

// source picks the explicit source, then the configured default.
func (a *app) source(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if a.cfg.DefaultSource != "" {
		return a.cfg.DefaultSource, nil
	}

	return "", fmt.Errorf("no source given and no default_source in config")
}
